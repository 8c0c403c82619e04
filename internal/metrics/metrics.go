package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nest_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nest_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nest_users_registered_total",
			Help: "Total users registered",
		},
	)

	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nest_messages_posted_total",
			Help: "Total messages posted",
		},
	)

	MessagesEdited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nest_messages_edited_total",
			Help: "Total message edits",
		},
	)

	TypingSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nest_typing_signals_total",
			Help: "Total typing signals received",
		},
	)

	// Push channel metrics
	SSEConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nest_sse_connections",
			Help: "Currently open SSE connections",
		},
	)

	SSEEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nest_sse_events_sent_total",
			Help: "Total SSE events delivered",
		},
		[]string{"type"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nest_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	StorePollFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nest_store_poll_failures_total",
			Help: "Push loop store polls that failed and were retried",
		},
	)
)
