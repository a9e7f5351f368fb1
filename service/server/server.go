package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solspray/solspray/service/metrics"
)

// Server represents the HTTP inspection surface for distribution runs.
// Runs themselves are driven by the CLI; the server exposes their durable
// state for operators and dashboards.
type Server struct {
	addr    string
	store   StateStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the /metrics endpoint won't be available.
func New(addr string, store StateStore, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Distribution state routes
	mux.Handle("GET /api/v1/distributions",
		withMetrics(s.metrics, "list_distributions", handleListDistributions(s.store, s.logger)))
	mux.Handle("GET /api/v1/distributions/{owner_id}",
		withMetrics(s.metrics, "get_distribution", handleGetDistribution(s.store, s.logger)))
	mux.Handle("DELETE /api/v1/distributions/{owner_id}",
		withMetrics(s.metrics, "reset_distribution", handleResetDistribution(s.store, s.metrics, s.logger)))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// withMetrics wraps a handler with HTTP metrics when a collector is present.
func withMetrics(m *metrics.Metrics, name string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return metrics.HTTPMetricsMiddleware(m, name, next)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
