package observability

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - gatekeeper_requests_total (counter): incremented per request with method and status class labels
//   - gatekeeper_request_duration_seconds (histogram): request duration with method label
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &StatusWriter{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()

		// Build a status class label like "2xx", "4xx", "5xx".
		statusStr := strconv.Itoa(sw.Status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(duration)
	})
}

// StatusWriter wraps http.ResponseWriter to capture the status code.
type StatusWriter struct {
	http.ResponseWriter
	Status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *StatusWriter) WriteHeader(status int) {
	if !w.written {
		w.Status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *StatusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
func (w *StatusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling
// http.ResponseController and similar utilities to access the original
// writer.
func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
