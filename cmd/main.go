package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/streakmatch/config"
	"github.com/Dosada05/streakmatch/db"
	"github.com/Dosada05/streakmatch/handlers"
	"github.com/Dosada05/streakmatch/metrics"
	"github.com/Dosada05/streakmatch/middleware"
	"github.com/Dosada05/streakmatch/realtime"
	"github.com/Dosada05/streakmatch/repositories"
	"github.com/Dosada05/streakmatch/repositories/memory"
	api "github.com/Dosada05/streakmatch/routes"
	"github.com/Dosada05/streakmatch/services"
	"github.com/Dosada05/streakmatch/storage"
	"github.com/Dosada05/streakmatch/workers"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title streakmatch API
// @version 1.0
// @description Win-streak matchmaking: create, join, leave and settle matches.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("store", cfg.StoreDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		matchRepo repositories.MatchRepository
		scoreRepo repositories.ScoreRepository
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		matchRepo, scoreRepo = store, store
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		if err := db.Migrate(ctx, dbConn); err != nil {
			logger.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}
		matchRepo = repositories.NewPostgresMatchRepository(dbConn)
		scoreRepo = repositories.NewPostgresScoreRepository(dbConn)
		logger.Info("database connection established")
	}

	var uploader storage.FileUploader
	if cfg.R2().Enabled() {
		uploader, err = storage.NewR2Uploader(ctx, cfg.R2(), logger)
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Info("R2 not configured, proof uploads disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	matchMetrics := metrics.NewMetrics(registry)

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	clock := clockwork.NewRealClock()
	ledger := services.NewScoreLedger(scoreRepo, services.NewReadThroughCache(cfg.ScoreCacheTTL), cfg.OutcomeApplyAttempts, logger, matchMetrics)
	feedService := services.NewFeedService(matchRepo, ledger, services.NewReadThroughCache(cfg.FeedCacheTTL))
	notifier := services.Notifiers{hub, feedService}
	activeFinder := services.NewActiveMatchFinder(matchRepo, logger)

	matchService := services.NewMatchService(matchRepo, scoreRepo, activeFinder, clock, notifier, logger, matchMetrics)
	matchmaker := services.NewMatchmaker(matchRepo, scoreRepo, activeFinder, clock, cfg.ForfeitWindow, notifier, logger, matchMetrics)
	lifecycle := services.NewLifecycleService(matchRepo, ledger, clock, cfg.ForfeitWindow, notifier, logger, matchMetrics)
	results := services.NewResultService(matchRepo, ledger, uploader, clock, cfg.ResultWindow, notifier, logger, matchMetrics)
	logger.Info("services initialized")

	worker, err := workers.NewOutcomeWorker(workers.Config{
		OutcomeRetryInterval: cfg.OutcomeRetryInterval,
		LiveSweepInterval:    cfg.LiveSweepInterval,
	}, ledger, matchRepo, notifier, clock, logger)
	if err != nil {
		logger.Error("failed to create background worker", slog.Any("error", err))
		os.Exit(1)
	}
	if err := worker.Start(ctx); err != nil {
		logger.Error("failed to start background worker", slog.Any("error", err))
		os.Exit(1)
	}

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{
			Auth:           middleware.NewAuthenticator(cfg.JWTSecretKey, logger),
			Gatherer:       registry,
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:         logger,
		},
		handlers.NewMatchHandler(matchService, matchmaker, lifecycle, results, logger),
		handlers.NewMeHandler(matchService, ledger, logger),
		handlers.NewFeedHandler(feedService, logger),
		handlers.NewWebSocketHandler(hub, matchService, cfg.CORSAllowedOrigins, logger),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}

	stop()
	if err := worker.Shutdown(); err != nil {
		logger.Error("failed to stop background worker", slog.Any("error", err))
	}
	logger.Info("application exited")
}
