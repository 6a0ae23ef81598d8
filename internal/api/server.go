package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"brasa/internal/compliance"
	"brasa/internal/costing"
	"brasa/internal/live"
	"brasa/internal/monitoring"
	"brasa/internal/prep"
	"brasa/internal/targets"
	"brasa/internal/variance"
)

// Services are the engines the API exposes.
type Services struct {
	Targets    *targets.Recalculator
	Prep       *prep.Service
	Compliance *compliance.Service
	Variance   *variance.Calculator
	Costs      *costing.Resolver
	Live       *live.Handler
	Metrics    *monitoring.Metrics
}

// BrasaAPI represents the HTTP surface of the service
type BrasaAPI struct {
	Router *gin.Engine
	Services
}

// NewBrasaAPI creates a new API instance
func NewBrasaAPI(svc Services, corsOrigins []string) *BrasaAPI {
	router := gin.Default()
	router.Use(cors.New(corsConfig(corsOrigins)))

	api := &BrasaAPI{
		Router:   router,
		Services: svc,
	}
	router.Use(api.observe())

	api.setupRoutes()
	return api
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// observe records request latency by route template.
func (a *BrasaAPI) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		a.Metrics.ObserveRequest(route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// setupRoutes configures all API endpoints
func (a *BrasaAPI) setupRoutes() {
	a.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Brasa API is running"})
	})
	a.Router.GET("/api/metrics", a.GetMetrics)

	v1 := a.Router.Group("/api/v1")
	{
		v1.POST("/prep/adjust", a.AdjustPlan)

		stores := v1.Group("/stores/:id")
		{
			// Targets
			stores.PUT("/targets", a.RecalculateTargets)
			stores.GET("/targets", a.GetTargets)

			// Prep
			stores.GET("/prep", a.GetPlan)
			stores.POST("/prep/lock", a.LockPlan)
			stores.GET("/prep/live", a.LivePlan)

			// Waste compliance
			stores.POST("/waste", a.SubmitWaste)
			stores.GET("/waste/history", a.WasteHistory)
			stores.GET("/compliance", a.ComplianceStatus)
			stores.POST("/compliance/close", a.CloseWeek)
			stores.POST("/compliance/unlock", a.UnlockStore)

			// Variance and its inputs
			stores.GET("/variance", a.StoreVariance)
			stores.POST("/invoices", a.AddInvoice)
			stores.GET("/costs/averages", a.CostAverages)
			stores.POST("/consumption", a.RecordConsumption)
			stores.POST("/guests", a.RecordGuests)
		}

		companies := v1.Group("/companies/:id")
		{
			companies.GET("/prep/status", a.PrepStatus)
			companies.GET("/waste/status", a.NetworkWaste)
			companies.GET("/variance", a.NetworkVariance)
		}
	}
}

func (a *BrasaAPI) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, a.Metrics.Snapshot())
}
