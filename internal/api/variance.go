package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brasa/internal/costing"
	"brasa/internal/variance"
)

func (a *BrasaAPI) StoreVariance(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	res, err := a.Variance.StoreVariance(c.Request.Context(), id, c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *BrasaAPI) NetworkVariance(c *gin.Context) {
	res, err := a.Variance.NetworkVariance(c.Request.Context(), c.Param("id"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *BrasaAPI) AddInvoice(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	var in costing.InvoiceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.StoreID = id

	rec, err := a.Costs.AddInvoice(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (a *BrasaAPI) CostAverages(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	avgs, err := a.Costs.Averages(c.Request.Context(), id, c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, avgs)
}

func (a *BrasaAPI) RecordConsumption(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	var in variance.ConsumptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.StoreID = id

	rec, err := a.Variance.RecordConsumption(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (a *BrasaAPI) RecordGuests(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	var in variance.GuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.StoreID = id

	rec, err := a.Variance.RecordGuests(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}
