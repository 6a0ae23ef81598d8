package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brasa/internal/compliance"
)

func (a *BrasaAPI) SubmitWaste(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	var req compliance.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.StoreID = id

	entry, err := a.Compliance.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (a *BrasaAPI) ComplianceStatus(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	status, err := a.Compliance.Status(c.Request.Context(), id, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *BrasaAPI) CloseWeek(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	var req struct {
		WeekStart string `json:"week_start" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := a.Compliance.CloseWeek(c.Request.Context(), id, req.WeekStart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *BrasaAPI) UnlockStore(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	n, err := a.Compliance.Unlock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store_id": id, "unlocked_weeks": n})
}

func (a *BrasaAPI) WasteHistory(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	days, err := a.Compliance.History(c.Request.Context(), id, c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (a *BrasaAPI) NetworkWaste(c *gin.Context) {
	status, err := a.Compliance.NetworkWaste(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
