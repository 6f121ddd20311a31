package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream (GitHub) metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_upstream_requests_total",
			Help: "Total number of HTTP requests made to the GitHub API",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, not_found, invalid, rate_limited, upstream, network, decode
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "github_upstream_request_duration_seconds",
			Help:    "Duration of GitHub API requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	UpstreamRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_upstream_rate_limited_total",
			Help: "Total number of GitHub responses classified as rate limited",
		},
		[]string{"endpoint"},
	)

	UpstreamFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "github_profile_fallbacks_total",
			Help: "Total number of profile lookups that used the fallback path",
		},
	)

	UpstreamPacingWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "github_upstream_pacing_waits_total",
			Help: "Total number of times an upstream request waited for the local limiter",
		},
	)

	// Retry controller metrics
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of attempts made by the retry controller",
		},
		[]string{"state"}, // state: success, retrying, failed, exhausted
	)

	RetryWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retry_wait_seconds",
			Help:    "Backoff delay before a retry attempt in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 6, 8, 10},
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses, including expired entries",
		},
		[]string{"namespace"},
	)

	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_expirations_total",
			Help: "Total number of entries removed on read because their TTL elapsed",
		},
		[]string{"namespace"},
	)

	CacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_items",
			Help: "Current number of items held per cache namespace",
		},
		[]string{"namespace"},
	)

	// Favorites aggregation metrics
	FanoutLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorites_lookups_total",
			Help: "Total number of per-ID lookups performed while resolving favorites",
		},
		[]string{"outcome"}, // outcome: cache_hit, fetched, failed
	)

	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "favorites_resolve_duration_seconds",
			Help:    "Duration of a full favorites resolution in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Passcode metrics
	SMSSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_messages_total",
			Help: "Total number of SMS send attempts",
		},
		[]string{"mode", "status"}, // mode: twilio, mock
	)

	PasscodeValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passcode_validations_total",
			Help: "Total number of access code validations",
		},
		[]string{"result"}, // result: match, mismatch, error
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of store operations",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"backend", "operation"},
	)

	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)
)
