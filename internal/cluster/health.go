// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import (
	gobreaker "github.com/sony/gobreaker/v2"
)

// Mode is the node's effective cluster topology.
type Mode string

const (
	// ModeSingleNode means no transport is configured.
	ModeSingleNode Mode = "single-node"
	// ModeClustered means events are being forwarded to other nodes.
	ModeClustered Mode = "clustered"
	// ModeDegraded means a transport is configured but unusable, so the node
	// is delivering locally only.
	ModeDegraded Mode = "degraded"
)

// Health is a point-in-time report for health endpoints.
type Health struct {
	NodeID                string `json:"node_id"`
	Mode                  Mode   `json:"mode"`
	TransportConnected    bool   `json:"transport_connected"`
	BreakerState          string `json:"breaker_state,omitempty"`
	RecentForwardFailures int64  `json:"recent_forward_failures"`
	Rooms                 int    `json:"rooms"`
	RoomChannels          int    `json:"room_channels"`
}

// Health reports the current mode and counters.
func (m *Manager) Health() Health {
	h := Health{
		NodeID: m.nodeID,
		Mode:   ModeSingleNode,
		Rooms:  m.hub.RoomCount(),
	}
	if m.transport == nil {
		return h
	}

	state := m.breaker.State()
	h.TransportConnected = m.transport.Connected()
	h.BreakerState = state.String()
	h.RecentForwardFailures = m.failures.Count()

	m.mu.Lock()
	h.RoomChannels = len(m.channels)
	m.mu.Unlock()

	if h.TransportConnected && state != gobreaker.StateOpen {
		h.Mode = ModeClustered
	} else {
		h.Mode = ModeDegraded
	}
	return h
}

// Connected reports whether events published here reach other nodes. It is
// false in single-node mode.
func (m *Manager) Connected() bool {
	return m.Health().Mode == ModeClustered
}
