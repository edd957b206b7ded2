// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/cowatch/internal/cluster"
	"github.com/tomtom215/cowatch/internal/connection"
)

// ClusterHealth reports the node's cluster mode. cluster.Manager implements it.
type ClusterHealth interface {
	Health() cluster.Health
}

// ConnectionStats reports live connection counts. connection.Manager
// implements it.
type ConnectionStats interface {
	Stats() connection.Stats
}

// Handler serves the health and status endpoints.
type Handler struct {
	cluster     ClusterHealth
	connections ConnectionStats
	startTime   time.Time
}

// NewHandler creates a Handler.
func NewHandler(c ClusterHealth, conns ConnectionStats) *Handler {
	return &Handler{cluster: c, connections: conns, startTime: time.Now()}
}

// Status is the body of /api/v1/status.
type Status struct {
	Cluster       cluster.Health   `json:"cluster"`
	Connections   connection.Stats `json:"connections"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}

// HealthLive answers liveness probes. It succeeds while the process serves
// HTTP, regardless of the transport.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	health := h.cluster.Health()
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":   true,
		"node_id": health.NodeID,
		"mode":    health.Mode,
	})
}

// HealthReady answers readiness probes. A degraded node still serves its
// local rooms, and a broker outage degrades every node at once, so the
// probe stays 200 and reports the mode in the body. Watch /api/v1/status
// or cowatch_transport_connected to alert on degradation.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.cluster.Health())
}

// NotFound answers unknown routes with the JSON error envelope.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path)
}

// MethodNotAllowed answers known routes hit with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed")
}

// Status reports cluster health and connection counts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, Status{
		Cluster:       h.cluster.Health(),
		Connections:   h.connections.Stats(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}
