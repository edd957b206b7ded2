// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Forward results.
const (
	ForwardOK      = "ok"
	ForwardFailed  = "failed"
	ForwardSkipped = "skipped"
)

// Admission results.
const (
	AdmissionAdmitted    = "admitted"
	AdmissionUserLimit   = "user_limit"
	AdmissionRoomLimit   = "room_limit"
	AdmissionGlobalLimit = "global_limit"
)

// Hub drop reasons.
const (
	DropClosed = "closed"
	DropFull   = "full"
)

// Playback apply results.
const (
	ApplyApplied = "applied"
	ApplyStale   = "stale"
	ApplyInvalid = "invalid"
	ApplyError   = "error"
)

var (
	// Cluster Metrics
	ClusterPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_cluster_published_total",
			Help: "Total number of room events published on this node",
		},
	)

	ClusterForwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_cluster_forwards_total",
			Help: "Forward attempts to the remote transport by result",
		},
		[]string{"result"}, // "ok", "failed", "skipped"
	)

	ClusterForwardDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cowatch_cluster_forward_duration_seconds",
			Help:    "Duration of forwards to the remote transport",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	ClusterRemoteReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_cluster_remote_received_total",
			Help: "Total number of cluster messages received from the remote transport",
		},
	)

	ClusterDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_cluster_duplicates_total",
			Help: "Total number of remote messages discarded as already seen",
		},
	)

	ClusterDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_cluster_decode_failures_total",
			Help: "Total number of remote messages dropped because they could not be decoded",
		},
	)

	ClusterRoomChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cowatch_cluster_room_channels",
			Help: "Current number of room channels subscribed on the remote transport",
		},
	)

	DedupEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_dedup_evictions_total",
			Help: "Message ids evicted from the dedup cache",
		},
		[]string{"reason"}, // "expired", "capacity"
	)

	// Hub Metrics
	HubDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_hub_deliveries_total",
			Help: "Total number of events enqueued to local subscriptions",
		},
	)

	HubDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_hub_drops_total",
			Help: "Events not enqueued to a local subscription",
		},
		[]string{"reason"}, // "closed", "full"
	)

	HubSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cowatch_hub_subscriptions",
			Help: "Current number of registered local subscriptions",
		},
	)

	// Connection Metrics
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cowatch_connections",
			Help: "Current number of admitted connections on this node",
		},
	)

	Admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_admissions_total",
			Help: "Admission decisions by result",
		},
		[]string{"result"},
	)

	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_evictions_total",
			Help: "Connections evicted by the sweeper",
		},
		[]string{"reason"}, // "idle_timeout", "max_duration", "shutdown"
	)

	// Playback Metrics
	PlaybackApplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_playback_applies_total",
			Help: "Playback mutations by result",
		},
		[]string{"result"},
	)

	PlaybackApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cowatch_playback_apply_duration_seconds",
			Help:    "Duration of playback apply including persistence",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transport Metrics
	TransportConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cowatch_transport_connected",
			Help: "Whether the remote transport is connected (1) or not (0)",
		},
	)

	TransportReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_transport_reconnects_total",
			Help: "Total number of successful transport reconnects",
		},
	)

	TransportDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_transport_disconnects_total",
			Help: "Total number of transport disconnects",
		},
	)

	// WebSocket Metrics
	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cowatch_websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cowatch_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cowatch_api_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cowatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordPublish records a room event published on this node.
func RecordPublish() {
	ClusterPublished.Inc()
}

// RecordForward records a forward attempt. Duration is ignored for skipped forwards.
func RecordForward(result string, duration time.Duration) {
	ClusterForwards.WithLabelValues(result).Inc()
	if result != ForwardSkipped {
		ClusterForwardDuration.Observe(duration.Seconds())
	}
}

// RecordRemoteReceived records a message arriving from the remote transport.
func RecordRemoteReceived() {
	ClusterRemoteReceived.Inc()
}

// RecordDuplicate records a remote message suppressed by dedup.
func RecordDuplicate() {
	ClusterDuplicates.Inc()
}

// RecordDecodeFailure records an undecodable remote message.
func RecordDecodeFailure() {
	ClusterDecodeFailures.Inc()
}

// RecordDedupEviction records a dedup cache eviction.
func RecordDedupEviction(reason string) {
	DedupEvictions.WithLabelValues(reason).Inc()
}

// RecordDelivery records an event enqueued to a subscription.
func RecordDelivery() {
	HubDeliveries.Inc()
}

// RecordDrop records an event not enqueued to a subscription.
func RecordDrop(reason string) {
	HubDrops.WithLabelValues(reason).Inc()
}

// RecordAdmission records an admission decision.
func RecordAdmission(result string) {
	Admissions.WithLabelValues(result).Inc()
}

// RecordEviction records a sweeper eviction.
func RecordEviction(reason string) {
	Evictions.WithLabelValues(reason).Inc()
}

// RecordPlaybackApply records a playback mutation outcome.
func RecordPlaybackApply(result string, duration time.Duration) {
	PlaybackApplies.WithLabelValues(result).Inc()
	PlaybackApplyDuration.Observe(duration.Seconds())
}

// SetTransportConnected updates the transport connectivity gauge.
func SetTransportConnected(connected bool) {
	if connected {
		TransportConnected.Set(1)
		return
	}
	TransportConnected.Set(0)
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
