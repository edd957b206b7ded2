// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package metrics provides Prometheus metrics for cowatch nodes.

Collectors are registered on the default registry through promauto and are
exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Cluster:
  - cowatch_cluster_published_total: room events published on this node
  - cowatch_cluster_forwards_total{result}: ok, failed, skipped
  - cowatch_cluster_forward_duration_seconds
  - cowatch_cluster_remote_received_total
  - cowatch_cluster_duplicates_total: echoes and redeliveries suppressed
  - cowatch_cluster_decode_failures_total
  - cowatch_cluster_room_channels
  - cowatch_dedup_evictions_total{reason}: expired, capacity

Hub:
  - cowatch_hub_deliveries_total
  - cowatch_hub_drops_total{reason}: closed, full
  - cowatch_hub_subscriptions

Connections:
  - cowatch_connections
  - cowatch_admissions_total{result}: admitted, user_limit, room_limit, global_limit
  - cowatch_evictions_total{reason}: idle_timeout, max_duration, shutdown

Playback:
  - cowatch_playback_applies_total{result}: applied, stale, invalid, error
  - cowatch_playback_apply_duration_seconds

Transport:
  - cowatch_transport_connected
  - cowatch_transport_reconnects_total
  - cowatch_transport_disconnects_total
  - cowatch_circuit_breaker_state{name}

# Example PromQL

Forward failure ratio over five minutes:

	rate(cowatch_cluster_forwards_total{result="failed"}[5m])
	  / rate(cowatch_cluster_forwards_total[5m])

Admission rejections by cap:

	sum by (result) (rate(cowatch_admissions_total{result!="admitted"}[5m]))
*/
package metrics
