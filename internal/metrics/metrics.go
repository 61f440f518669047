package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound API calls to GoHighLevel.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghl_api_requests_total",
			Help: "Total number of GoHighLevel API requests made (by operation, method and status).",
		},
		[]string{"operation", "method", "status"},
	)

	// Measures duration of API requests to GoHighLevel.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghl_api_request_duration_seconds",
			Help:    "Duration of GoHighLevel API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"operation", "method"},
	)

	// Tracks OAuth2 grants by grant type and result.
	TokenGrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_token_grants_total",
			Help: "Number of OAuth2 token grants performed.",
		},
		[]string{"grant", "result"}, // result = "ok" | "error"
	)

	// Tracks session store lookups.
	SessionStoreAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_store_access_total",
			Help: "Number of hits/misses in the session credential store.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncUpstreamRequest(operation, method, status string) {
	UpstreamRequestsTotal.WithLabelValues(operation, method, status).Inc()
}

func IncTokenGrant(grant, result string) {
	TokenGrantsTotal.WithLabelValues(grant, result).Inc()
}

func IncSessionAccess(result string) {
	SessionStoreAccess.WithLabelValues(result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}
