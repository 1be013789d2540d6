// Package metrics provides Prometheus instrumentation for the chat relay.
// It exposes a gauge for live connections, counters for event throughput and
// failure modes, and a histogram for fan-out latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks the current number of live WebSocket sessions.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_active",
		Help: "Current number of live WebSocket sessions",
	})

	// EventsTotal counts dispatched inbound events, labeled by event type.
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Total number of inbound events dispatched",
	}, []string{"type"}) // type = "message", "set_username", "typing"

	// FramesDroppedTotal counts inbound frames dropped before dispatch,
	// labeled by reason: "empty", "rate_limited", "oversized".
	FramesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_frames_dropped_total",
		Help: "Total number of inbound frames dropped before dispatch",
	}, []string{"reason"})

	// DeliveryFailuresTotal counts per-peer send failures during fan-out.
	DeliveryFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_delivery_failures_total",
		Help: "Total number of per-peer delivery failures during fan-out",
	})

	// PersistFailuresTotal counts message log append failures.
	PersistFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_persist_failures_total",
		Help: "Total number of message log append failures",
	})

	// BroadcastLatency records the wall time of one full fan-out in seconds.
	BroadcastLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_broadcast_latency_seconds",
		Help:    "Duration of one full broadcast fan-out in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		EventsTotal,
		FramesDroppedTotal,
		DeliveryFailuresTotal,
		PersistFailuresTotal,
		BroadcastLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
