// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package api assembles the node's HTTP surface on a chi router.

Routes:

	GET /ws/{roomID}      WebSocket gateway (see package websocket)
	GET /healthz          liveness
	GET /readyz           readiness
	GET /api/v1/status    cluster health and connection counts
	GET /metrics          Prometheus exposition

/readyz is 200 in every mode and carries the cluster health in its body. A
degraded node (transport configured but unusable) keeps serving its local
clients, so it is not taken out of rotation.

Middleware: request ids (X-Request-ID), real IP, panic recovery, CORS via
go-chi/cors, per-IP limits on upgrades and health probes via go-chi/httprate,
and request metrics on the WebSocket and status routes.
*/
package api
