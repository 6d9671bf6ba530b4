// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the einlass gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets defines histogram buckets suited for authentication
// decisions, ranging from 1ms (in-memory lookups) to 10s (a slow remote
// credential check).
var AuthBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "einlass_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "einlass_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AuthBuckets,
		},
		[]string{"method"},
	)

	// AuthDecisionsTotal counts interception outcomes: success (identity
	// attached), anonymous (optional pass-through), challenge (redirect
	// or 403 written), passthrough (no module engaged), failure.
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "einlass_auth_decisions_total",
			Help: "Authentication decisions",
		},
		[]string{"outcome"},
	)

	// LoginAttemptsTotal counts login-action submissions by result:
	// success, invalid, missing, error.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "einlass_login_attempts_total",
			Help: "Login attempts",
		},
		[]string{"result"},
	)

	// LogoutsTotal counts processed logout actions.
	LogoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "einlass_logouts_total",
			Help: "Logouts",
		},
	)

	// ValidateDuration records credential validator latency in seconds.
	ValidateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "einlass_validate_duration_seconds",
			Help:    "Credential validation latency",
			Buckets: AuthBuckets,
		},
	)

	// ProviderRegistrations tracks the number of active provider
	// registrations across all layers.
	ProviderRegistrations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "einlass_provider_registrations",
			Help: "Active provider registrations",
		},
	)

	// ConfigEpoch reports the current configuration epoch.
	ConfigEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "einlass_config_epoch",
			Help: "Current configuration epoch",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthDecisionsTotal,
		LoginAttemptsTotal,
		LogoutsTotal,
		ValidateDuration,
		ProviderRegistrations,
		ConfigEpoch,
	)
}
