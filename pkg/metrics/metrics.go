// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks live websocket connections by role.
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatrelay_connections_active",
			Help: "Number of live websocket connections",
		},
		[]string{"role"},
	)

	// MessagesTotal tracks appended chat messages by sender.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_messages_total",
			Help: "Total chat messages appended to history",
		},
		[]string{"sender"},
	)

	// ChatClosuresTotal tracks chats closed per agent.
	ChatClosuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_chat_closures_total",
			Help: "Total chats closed by agents",
		},
		[]string{"agent"},
	)

	// EventsDroppedTotal tracks inbound events that were not processed.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_dropped_total",
			Help: "Inbound events dropped before routing",
		},
		[]string{"type", "reason"},
	)

	// StoreFailuresTotal tracks failed calls into the durable stores.
	StoreFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_store_failures_total",
			Help: "Failed durable store operations",
		},
		[]string{"op"},
	)

	// AlertsDroppedTotal tracks operator alerts dropped because the queue was full.
	AlertsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_alerts_dropped_total",
			Help: "Operator alerts dropped on a full queue",
		},
	)

	// EventDuration tracks how long the router spends on one inbound event.
	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_event_duration_seconds",
			Help:    "Router event handling duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"type"},
	)
)

// ConnectionOpened increments the live connection gauge for role.
func ConnectionOpened(role string) {
	ConnectionsActive.WithLabelValues(role).Inc()
}

// ConnectionClosed decrements the live connection gauge for role.
func ConnectionClosed(role string) {
	ConnectionsActive.WithLabelValues(role).Dec()
}

// RecordMessage counts one appended message.
func RecordMessage(sender string) {
	MessagesTotal.WithLabelValues(sender).Inc()
}

// RecordDropped counts one dropped inbound event.
func RecordDropped(eventType, reason string) {
	EventsDroppedTotal.WithLabelValues(eventType, reason).Inc()
}

// RecordStoreFailure counts one failed store operation.
func RecordStoreFailure(op string) {
	StoreFailuresTotal.WithLabelValues(op).Inc()
}

// RecordEvent observes router handling time for one event.
func RecordEvent(eventType string, seconds float64) {
	EventDuration.WithLabelValues(eventType).Observe(seconds)
}

// RecordAlertDropped counts one dropped operator alert.
func RecordAlertDropped() {
	AlertsDroppedTotal.Inc()
}
