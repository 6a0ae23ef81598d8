package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"brasa/internal/api"
	"brasa/internal/briefing"
	"brasa/internal/catalog"
	"brasa/internal/compliance"
	"brasa/internal/config"
	"brasa/internal/costing"
	"brasa/internal/database"
	"brasa/internal/live"
	"brasa/internal/models"
	"brasa/internal/monitoring"
	"brasa/internal/prep"
	"brasa/internal/repository"
	"brasa/internal/targets"
	"brasa/internal/variance"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()
	config.LoadEnvFile()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	if err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.LogMode); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()
	repo := repository.New(database.GetDB())

	if err := seedStores(repo, cfg.Stores); err != nil {
		log.Fatalf("Failed to seed stores: %v", err)
	}

	server, err := newServer(cfg, repo)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics, server.Metrics)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Metrics server shutdown error: %v", err)
			}
		}
	}()

	log.Printf("Starting API server on port %d", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("API server error: %v", err)
	}
}

// newServer wires every engine over repo.
func newServer(cfg *config.Config, repo *repository.GormRepository) (*api.BrasaAPI, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedule, err := compliance.NewSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	costs := costing.NewResolver(repo, cfg.Costs)

	prepOpts := []prep.ServiceOption{prep.WithMetrics(metrics)}
	if polisher := initializePolisher(cfg.LLM); polisher != nil {
		prepOpts = append(prepOpts, prep.WithPolisher(polisher))
	}
	prepSvc := prep.NewService(repo, prep.NewPlanner(cat, cfg.BriefingTolerance), cat, costs, prep.Settings{
		DefaultWeightPerGuest: cfg.DefaultTotalWeightPerGuest,
		FinancialTarget:       cfg.FinancialTargetPerGuest,
		Location:              loc,
		Forecast:              prep.Forecaster{Base: cfg.Forecast.Base, Step: cfg.Forecast.Step},
	}, prepOpts...)

	return api.NewBrasaAPI(api.Services{
		Targets:    targets.NewRecalculator(repo, cat, costs, targets.WithMetrics(metrics)),
		Prep:       prepSvc,
		Compliance: compliance.NewService(repo, schedule, compliance.SettingsFromConfig(cfg, loc), compliance.WithMetrics(metrics)),
		Variance: variance.NewCalculator(repo, cat, costs, variance.Settings{
			DefaultWeightPerGuest: cfg.DefaultTotalWeightPerGuest,
			FinancialTarget:       cfg.FinancialTargetPerGuest,
			TopN:                  cfg.Variance.TopN,
		}, metrics),
		Costs:   costs,
		Live:    live.NewHandler(prepSvc, nil),
		Metrics: metrics,
	}, cfg.Server.CORSOrigins), nil
}

// initializePolisher returns nil when rewording is disabled or unavailable;
// briefings then keep their rule-based text.
func initializePolisher(cfg config.LLMConfig) prep.Polisher {
	if !cfg.Enabled {
		return nil
	}
	polisher, err := briefing.NewFromConfig(cfg)
	if err != nil {
		log.Printf("Briefing rewording disabled: %v", err)
		return nil
	}
	log.Printf("Briefing rewording enabled (%s %s)", cfg.Provider, cfg.Model)
	return polisher
}

func seedStores(repo *repository.GormRepository, stores []config.StoreConfig) error {
	ctx := context.Background()
	for _, sc := range stores {
		store := &models.Store{CompanyID: sc.CompanyID, Name: sc.Name, Timezone: sc.Timezone}
		store.ID = sc.ID
		if err := repo.SaveStore(ctx, store); err != nil {
			return fmt.Errorf("store %q: %w", sc.Name, err)
		}
	}
	if len(stores) > 0 {
		log.Printf("Seeded %d stores", len(stores))
	}
	return nil
}

func startMetricsServer(cfg config.MetricsConfig, metrics *monitoring.Metrics) *http.Server {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET(path, gin.WrapH(metrics.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: metricsRouter,
	}

	go func() {
		log.Printf("Starting metrics server on port %d", cfg.Port)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return metricsServer
}
