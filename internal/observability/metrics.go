package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Search request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1, 2.5},
		},
		[]string{"index", "status"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests",
		},
		[]string{"index", "status"},
	)

	AssistantQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_queries_total",
			Help: "Total number of assistant queries by classified intent",
		},
		[]string{"intent"},
	)

	ActionExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_executions_total",
			Help: "Total number of dispatched actions",
		},
		[]string{"action", "status"},
	)

	RateLimitedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	MeiliQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meili_query_duration_seconds",
			Help:    "Meilisearch query duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1},
		},
		[]string{"index", "status"},
	)

	CHQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ch_query_duration_seconds",
			Help:    "ClickHouse query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"query_type", "status"},
	)

	IndexingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_events_total",
			Help: "Total number of indexing events processed",
		},
		[]string{"operation", "status"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_total",
			Help: "Total number of background jobs by terminal status",
		},
		[]string{"type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	PaymentOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Total number of payment provider operations",
		},
		[]string{"provider", "operation", "status"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook deliveries received",
		},
		[]string{"source", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowQueryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_query_total",
			Help: "Total number of slow queries",
		},
		[]string{"severity", "index"},
	)

	DegradedSearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "degraded_searches_total",
			Help: "Total number of searches served as an empty degraded result",
		},
	)
)
