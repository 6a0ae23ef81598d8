package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brasa/internal/prep"
	"brasa/internal/targets"
)

// Target handlers

func (a *BrasaAPI) RecalculateTargets(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	var req targets.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.StoreID = id

	res, err := a.Targets.Recalculate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *BrasaAPI) GetTargets(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	res, err := a.Targets.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Prep handlers

func (a *BrasaAPI) planRequest(c *gin.Context) (prep.PlanRequest, bool) {
	id, ok := storeID(c)
	if !ok {
		return prep.PlanRequest{}, false
	}
	guests, ok := optionalInt(c, "guests")
	if !ok {
		return prep.PlanRequest{}, false
	}
	return prep.PlanRequest{StoreID: id, Date: c.Query("date"), ForecastGuests: guests}, true
}

func (a *BrasaAPI) GetPlan(c *gin.Context) {
	req, ok := a.planRequest(c)
	if !ok {
		return
	}
	plan, err := a.Prep.GetPlan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// AdjustRequest is a plan and the proteins to take out of it.
type AdjustRequest struct {
	Plan     prep.Plan `json:"plan"`
	Excluded []string  `json:"excluded"`
}

func (a *BrasaAPI) AdjustPlan(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := a.Prep.Adjust(c.Request.Context(), req.Plan, req.Excluded)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (a *BrasaAPI) LockPlan(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	var req prep.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.StoreID = id

	lock, err := a.Prep.LockPlan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lock)
}

func (a *BrasaAPI) PrepStatus(c *gin.Context) {
	status, err := a.Prep.NetworkStatus(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// LivePlan opens a websocket session over the requested plan. Errors
// resolving the plan are returned before the upgrade.
func (a *BrasaAPI) LivePlan(c *gin.Context) {
	req, ok := a.planRequest(c)
	if !ok {
		return
	}
	plan, err := a.Prep.GetPlan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	a.Live.Serve(c.Writer, c.Request, *plan)
}
