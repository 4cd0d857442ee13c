// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the gatekeeper pipeline.
package observability

import "github.com/prometheus/client_golang/prometheus"

// APIBuckets defines histogram buckets suited for API request latencies,
// ranging from 5ms to 10s.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method"},
	)

	// AuthFailuresTotal counts rejected identity resolutions and role checks.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_auth_failures_total",
			Help: "Authentication and authorization failures",
		},
		[]string{"reason"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)

	// AuditRecordsTotal counts audit entries written, by outcome status.
	AuditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_audit_records_total",
			Help: "Audit entries recorded",
		},
		[]string{"status"},
	)

	// AuditWriteFailuresTotal counts audit store failures. These are
	// swallowed by the recorder, so this counter is the only place they
	// surface besides the log.
	AuditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_audit_write_failures_total",
			Help: "Audit store write failures",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthFailuresTotal,
		RateLimitRejectedTotal,
		AuditRecordsTotal,
		AuditWriteFailuresTotal,
	)
}
