// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package main is the entry point for a cowatch node.

A node accepts WebSocket clients for co-watching rooms, keeps room playback
state, and exchanges room events with other nodes over NATS. Every node is
identical; a load balancer may send any client to any node.

# Application Architecture

	cowatch (root supervisor)
	├── transport-layer
	│   └── embedded NATS broker (NATS_EMBEDDED=true)
	├── core-layer
	│   └── connection sweeper (idle and max-duration eviction)
	└── api-layer
	    └── HTTP server
	        ├── GET /ws/{roomID}    WebSocket gateway
	        ├── GET /healthz        liveness
	        ├── GET /readyz         readiness
	        ├── GET /api/v1/status  cluster and connection report
	        └── GET /metrics        Prometheus

Initialization order:

 1. Configuration: Koanf v2 defaults, optional config.yaml, environment
 2. Logging: zerolog at LOG_LEVEL in LOG_FORMAT
 3. Transport: NATS client when NATS_URL or NATS_EMBEDDED is set
 4. Cluster manager: local hub, dedup, forwarding
 5. Connection manager: per-user, per-room and node-wide caps
 6. Playback: memory or BadgerDB store behind the playback service
 7. Gateway and router
 8. Supervisor tree

# Modes

Single node (default): NATS_URL empty. Events are delivered locally only.

Seed node with an in-process broker:

	NATS_EMBEDDED=true NATS_EMBEDDED_HOST=0.0.0.0 ./cowatch

Further nodes:

	NATS_URL=nats://seed:4222 ./cowatch

Clients connect with the user id in the X-User-ID header set by an
authenticating proxy:

	websocat -H 'X-User-ID: alice' ws://localhost:8080/ws/movie-night

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server stops
accepting upgrades, the sweeper closes remaining connections with a going-away
close frame, the cluster manager and transport are closed, and the playback
store is flushed.
*/
package main
