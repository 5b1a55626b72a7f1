package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API Request Metrics
var (
	// APIRequestsTotal tracks total API requests by resource, method, and status
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_requests_total",
			Help: "Total API requests by resource, HTTP method, and response status",
		},
		[]string{"resource", "method", "status"},
	)

	// APIRequestDuration tracks API request latency in seconds
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_client_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"resource", "method"},
	)

	// APIRetriesTotal tracks transient-error retries by resource
	APIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_retries_total",
			Help: "Total API request retries after transient errors",
		},
		[]string{"resource"},
	)
)

// Session Metrics
var (
	// TokenRefreshesTotal tracks token refresh attempts by result
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_token_refreshes_total",
			Help: "Total token refresh attempts by result (success/rejected/error)",
		},
		[]string{"result"},
	)

	// SessionLogoutsTotal tracks session terminations by reason
	SessionLogoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logouts_total",
			Help: "Total session terminations by reason (user/session_age/refresh_limit/refresh_rejected)",
		},
		[]string{"reason"},
	)

	// SessionActive tracks whether a session is currently held (1) or not (0)
	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_active",
			Help: "1 if an authenticated session is currently held, 0 otherwise",
		},
	)
)

// Response Cache Metrics
var (
	// ResponseCacheHits tracks GET responses served from the local cache
	ResponseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_hits_total",
			Help: "Total number of GET responses served from the local cache",
		},
	)

	// ResponseCacheMisses tracks GET requests that fell through to the API
	ResponseCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_misses_total",
			Help: "Total number of cacheable GET requests that fell through to the API",
		},
	)

	// ResponseCacheSize tracks current number of entries in the response cache
	ResponseCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_entries",
			Help: "Current number of entries in the response cache",
		},
	)

	// ResponseCacheEvictions tracks number of expired entries evicted
	ResponseCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_evictions_total",
			Help: "Total number of expired response cache entries evicted",
		},
	)
)

// Circuit Breaker Metrics
var (
	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_circuit_breaker_state_changes_total",
			Help: "API circuit breaker state transitions by new state",
		},
		[]string{"state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_circuit_breaker_state",
			Help: "Current API circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
