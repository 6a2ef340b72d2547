// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

// Package metrics provides Prometheus instrumentation for the sync pipeline,
// exposed at /metrics on the status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inbound pipeline

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackbridge_events_received_total",
			Help: "Playback session events received from Jellyfin",
		},
		[]string{"source"}, // websocket, poller
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackbridge_events_rejected_total",
			Help: "Session events rejected during translation",
		},
		[]string{"reason"}, // incomplete, unsupported_kind, missing_ids, resolver
	)

	// Admission

	ObservationsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackbridge_observations_accepted_total",
			Help: "Observations admitted past the debounce filter",
		},
	)

	ObservationsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackbridge_observations_skipped_total",
			Help: "Observations suppressed by the debounce filter",
		},
	)

	SeenMarks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackbridge_seen_marks_total",
			Help: "Items marked as seen",
		},
	)

	DebounceEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackbridge_debounce_entries",
			Help: "Live entries in the debounce store after cleanup",
		},
	)

	// Outbound dispatch

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackbridge_dispatch_duration_seconds",
			Help:    "Duration of outbound MediaTracker calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackbridge_dispatch_failures_total",
			Help: "Failed outbound MediaTracker calls",
		},
		[]string{"endpoint", "kind"}, // kind: transport, status
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackbridge_sync_queue_depth",
			Help: "Sync jobs queued and not yet dispatched",
		},
	)

	// Jellyfin connection

	WebsocketConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackbridge_websocket_connected",
			Help: "1 when the Jellyfin WebSocket is connected",
		},
	)

	WebsocketReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackbridge_websocket_reconnects_total",
			Help: "Jellyfin WebSocket reconnection attempts",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackbridge_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"name"},
	)
)

// RecordBreakerState maps gobreaker state strings onto the gauge.
func RecordBreakerState(name, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
