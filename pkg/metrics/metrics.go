// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// IngestEventsTotal counts inbound webhook events by terminal state.
	IngestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Inbound webhook events by terminal pipeline state",
		},
		[]string{"state"},
	)

	// IngestDuration tracks pipeline run time per event.
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Inbound event processing duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"state"},
	)

	// DispatchTotal counts outbound sends by kind and outcome.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "Outbound provider sends",
		},
		[]string{"kind", "outcome"},
	)

	// AuthzDenialsTotal counts authorization denials per operation.
	AuthzDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Requests denied by the role guard",
		},
		[]string{"operation"},
	)

	// ContactsTotal tracks contacts created.
	ContactsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contacts_total",
			Help: "Total contacts created",
		},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
		[]string{"origin"},
	)

	// MessagesTotal tracks total messages recorded.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages recorded",
		},
		[]string{"sender_kind"},
	)

	// MessagesDeduplicatedTotal counts provider retries absorbed by dedup.
	MessagesDeduplicatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_deduplicated_total",
			Help: "Inbound messages recognized as provider replays",
		},
	)

	// JournalPublishErrors counts failed JetStream journal publishes.
	JournalPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_publish_errors_total",
			Help: "Failed JetStream journal publishes",
		},
		[]string{"kind"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordIngest records the terminal state of one inbound event.
func RecordIngest(state string, duration float64) {
	IngestEventsTotal.WithLabelValues(state).Inc()
	IngestDuration.WithLabelValues(state).Observe(duration)
}

// RecordDispatch records one outbound send.
func RecordDispatch(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DispatchTotal.WithLabelValues(kind, outcome).Inc()
}
