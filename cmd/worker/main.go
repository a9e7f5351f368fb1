package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solspray/solspray/service/config"
	"github.com/solspray/solspray/service/db"
	"github.com/solspray/solspray/service/metrics"
	"github.com/solspray/solspray/service/temporal"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize checkpoint store
	store := db.NewStore(dbPool)

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Start metrics HTTP server
	metricsAddr := getEnv("METRICS_ADDR", ":9091")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Initialize Temporal worker for checkpoint sweeps
	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Store:             store,
		Metrics:           metricsCollector,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"temporal_host", cfg.TemporalHost,
		"temporal_namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		worker.Stop()

		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// getEnv returns the value of an environment variable or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
