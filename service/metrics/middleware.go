package metrics

import (
	"net/http"
	"time"
)

// HTTPMetricsMiddleware wraps a handler so every request records its method,
// status code, and duration. The handlerName parameter should be a constant
// identifier for the endpoint (e.g., "list_distributions").
func HTTPMetricsMiddleware(m *Metrics, handlerName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture the status code
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.RecordHTTPRequest(handlerName, r.Method, wrapped.statusCode, duration)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and calls the underlying WriteHeader.
func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
