package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec
	endpointRotationsTotal *prometheus.CounterVec

	// Distribution Metrics
	transfersSubmittedTotal *prometheus.CounterVec
	transferLamports        *prometheus.HistogramVec
	batchDuration           *prometheus.HistogramVec
	distributionRunsTotal   *prometheus.CounterVec
	checkpointWritesTotal   *prometheus.CounterVec
	checkpointDeletesTotal  *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of transfer retry attempts by failure class",
			},
			[]string{"reason"},
		),
		endpointRotationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "endpoint_rotations_total",
				Help: "Total number of RPC endpoint rotations",
			},
			[]string{"endpoint"},
		),

		// Distribution Metrics
		transfersSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_submitted_total",
				Help: "Total number of transfer submissions by owner and status",
			},
			[]string{"owner", "status"},
		),
		transferLamports: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transfer_lamports",
				Help:    "Lamports moved per successful transfer",
				Buckets: prometheus.ExponentialBuckets(1_000_000, 10, 8),
			},
			[]string{"owner"},
		),
		batchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distribution_batch_duration_seconds",
				Help:    "Duration of one distribution batch in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"owner", "status"},
		),
		distributionRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "distribution_runs_total",
				Help: "Total number of distribution runs by terminal outcome",
			},
			[]string{"owner", "outcome"},
		),
		checkpointWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkpoint_writes_total",
				Help: "Total number of checkpoint writes",
			},
			[]string{"owner", "status"},
		),
		checkpointDeletesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkpoint_deletes_total",
				Help: "Total number of checkpoint deletions",
			},
			[]string{"owner", "reason"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRetry records a retry attempt by failure class.
func (m *Metrics) RecordRetry(reason string) {
	m.solanaRPCRetries.WithLabelValues(reason).Inc()
}

// RecordEndpointRotation records a rotation to a new endpoint.
func (m *Metrics) RecordEndpointRotation(endpoint string) {
	m.endpointRotationsTotal.WithLabelValues(endpoint).Inc()
}

// Distribution metric helpers

// RecordTransferSubmitted records one transfer attempt outcome.
func (m *Metrics) RecordTransferSubmitted(owner, status string) {
	m.transfersSubmittedTotal.WithLabelValues(owner, status).Inc()
}

// RecordTransferLamports records the lamports moved by a successful transfer.
func (m *Metrics) RecordTransferLamports(owner string, lamports float64) {
	m.transferLamports.WithLabelValues(owner).Observe(lamports)
}

// RecordBatchDuration records one batch execution.
func (m *Metrics) RecordBatchDuration(owner, status string, duration float64) {
	m.batchDuration.WithLabelValues(owner, status).Observe(duration)
}

// RecordDistributionRun records the terminal outcome of a run.
func (m *Metrics) RecordDistributionRun(owner, outcome string) {
	m.distributionRunsTotal.WithLabelValues(owner, outcome).Inc()
}

// RecordCheckpointWrite records a checkpoint persistence attempt.
func (m *Metrics) RecordCheckpointWrite(owner string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.checkpointWritesTotal.WithLabelValues(owner, status).Inc()
}

// RecordCheckpointDelete records a checkpoint deletion.
func (m *Metrics) RecordCheckpointDelete(owner, reason string) {
	m.checkpointDeletesTotal.WithLabelValues(owner, reason).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
