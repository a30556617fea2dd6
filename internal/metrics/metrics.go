// Package metrics provides Prometheus instrumentation for the channel
// messaging core. It exposes gauges for connection and channel counts,
// counters for message and broadcast throughput, and histograms for
// delivery latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatcore_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// ActiveChannels tracks the number of channels with at least one live
	// subscribed connection.
	ActiveChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatcore_active_channels",
		Help: "Current number of channels with live subscriptions",
	})

	// MessagesTotal counts message post attempts, labeled by outcome:
	// "created", "denied", "invalid", or "error".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcore_messages_total",
		Help: "Total number of message post attempts",
	}, []string{"outcome"})

	// BroadcastsTotal counts broadcast events, labeled by event type.
	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcore_broadcasts_total",
		Help: "Total number of broadcast events dispatched",
	}, []string{"type"})

	// ModerationDenials counts writes blocked by the moderation policy,
	// labeled by reason: "muted", "disabled", or "locked".
	ModerationDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcore_moderation_denials_total",
		Help: "Total number of writes blocked by moderation",
	}, []string{"reason"})

	// BroadcastLatency records the time to fan an event out to all
	// subscribed connections.
	BroadcastLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatcore_broadcast_latency_seconds",
		Help:    "Broadcast fan-out latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ActiveChannels,
		MessagesTotal,
		BroadcastsTotal,
		ModerationDenials,
		BroadcastLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
