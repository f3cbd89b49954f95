package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rebook-service/internal/domain/repository"
	"rebook-service/internal/infrastructure/config"
	"rebook-service/internal/infrastructure/persistence"
	"rebook-service/internal/infrastructure/router"
	"rebook-service/internal/interface/httpapi"
	transitRepo "rebook-service/internal/interface/repository"
	"rebook-service/internal/interface/webhook"
	"rebook-service/internal/usecase"
	"rebook-service/pkg/logger"
	"rebook-service/pkg/metrics"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 15 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Rebook Service", "version", cfg.AppVersion, "store", cfg.StoreBackend)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up storage
	var (
		resultRepo repository.ResultRepository
		jobRepo    repository.JobRepository
		closeStore func()
	)
	switch cfg.StoreBackend {
	case config.StoreMongo:
		log.Info("Connecting to MongoDB")
		mongoClient, db, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", "error", err)
		}
		resultRepo = transitRepo.NewMongoResultRepository(db)
		jobRepo = transitRepo.NewMongoJobRepository(db)
		closeStore = func() {
			disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer disconnectCancel()
			if err := mongoClient.Disconnect(disconnectCtx); err != nil {
				log.Error("MongoDB disconnect error", "error", err)
			}
		}
	case config.StoreBolt:
		log.Info("Opening BoltDB", "path", cfg.BoltPath)
		boltDB, err := persistence.NewBoltDB(cfg.BoltPath)
		if err != nil {
			log.Fatal("Failed to open BoltDB", "error", err)
		}
		resultRepo = transitRepo.NewBoltResultRepository(boltDB)
		jobRepo = transitRepo.NewBoltJobRepository(boltDB)
		closeStore = func() {
			if err := boltDB.Close(); err != nil {
				log.Error("BoltDB close error", "error", err)
			}
		}
	default:
		log.Warn("Using in-memory store, results are lost on restart")
		resultRepo = transitRepo.NewMemoryResultRepository()
		jobRepo = transitRepo.NewMemoryJobRepository()
		closeStore = func() {}
	}

	// Reload jobs so dedup and polling survive restarts
	jobs := usecase.NewJobRegistry(jobRepo, log)
	if err := jobs.Restore(ctx); err != nil {
		log.Fatal("Failed to restore jobs", "error", err)
	}

	appMetrics := metrics.NewMetrics("rebook", nil)

	// Set up transit search backends
	hafas := transitRepo.NewHafasClient(cfg.HafasBaseURL, cfg.HafasRequestsPerMinute, log)
	available := map[string]repository.TransitSearcher{
		"train":  transitRepo.NewTrainSearch(hafas),
		"bus":    transitRepo.NewBusSearch(hafas),
		"flight": transitRepo.NewFlightSearch(log),
	}
	var backends []repository.TransitSearcher
	for _, name := range cfg.EnabledBackends {
		backend, ok := available[strings.ToLower(name)]
		if !ok {
			log.Fatal("Unknown transit backend", "backend", name)
		}
		backends = append(backends, backend)
	}
	log.Info("Enabled transit backends", "backends", cfg.EnabledBackends)

	scorer := usecase.NewScorer(usecase.ScorerConfig{
		NightStartHour:    cfg.NightStartHour,
		NightEndHour:      cfg.NightEndHour,
		LongLayover:       cfg.LongLayover,
		FlexibleProviders: cfg.FlexibleProviders,
	})

	orchestrator := usecase.NewOrchestrator(
		ctx,
		backends,
		scorer,
		transitRepo.NewCheckoutLinkBuilder(cfg.CheckoutExpiry),
		resultRepo,
		jobs,
		appMetrics,
		log,
		usecase.OrchestratorConfig{
			BackendTimeout: cfg.BackendTimeout,
			JobTimeout:     cfg.JobTimeout,
		},
	)

	// Register survey providers
	providers := router.NewProviderRouter(log)
	providers.Register(webhook.NewTallyAdapter(cfg.TallySigningSecret))
	providers.Register(webhook.NewTypeformAdapter(cfg.TypeformSecret))
	if cfg.TallySigningSecret == "" || cfg.TypeformSecret == "" {
		log.Warn("Webhook signature verification is disabled for providers without a secret")
	}

	ingress := usecase.NewWebhookIngress(providers, jobs, orchestrator, appMetrics, log)
	query := usecase.NewQueryService(jobs, resultRepo)

	handler := httpapi.NewHandler(ingress, query, log, httpapi.Options{
		WebhookRateRPS:    cfg.WebhookRateRPS,
		WebhookRateBurst:  cfg.WebhookRateBurst,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel in-flight jobs, which fail with "cancelled"

	drained := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		log.Warn("Timed out waiting for in-flight jobs")
	}

	closeStore()

	log.Info("Rebook Service stopped")
}
