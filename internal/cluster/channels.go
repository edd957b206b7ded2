// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/metrics"
	"github.com/tomtom215/cowatch/internal/transport"
)

// resubscribeDelay is the pause before retrying a failed or ended room
// channel subscription.
var resubscribeDelay = time.Second

// roomChannel is the transport subscription for one locally hosted room.
type roomChannel struct {
	cancel context.CancelFunc
	// ready is closed once the first transport subscription succeeds.
	ready chan struct{}
}

// RoomActivated subscribes to the room's transport channel. It is called by
// the hub, under the room's shard lock, when the first local subscription
// for roomID appears.
func (m *Manager) RoomActivated(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.channels[roomID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := &roomChannel{cancel: cancel, ready: make(chan struct{})}
	m.channels[roomID] = ch
	metrics.ClusterRoomChannels.Inc()

	m.wg.Add(1)
	go m.runRoomChannel(ctx, roomID, ch)
}

// RoomDeactivated cancels the room's transport subscription when the last
// local subscription leaves.
func (m *Manager) RoomDeactivated(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[roomID]
	if !ok {
		return
	}
	ch.cancel()
	delete(m.channels, roomID)
	metrics.ClusterRoomChannels.Dec()
}

// runRoomChannel keeps a transport subscription open for roomID until ctx
// ends, resubscribing after errors or a closed stream.
func (m *Manager) runRoomChannel(ctx context.Context, roomID string, ch *roomChannel) {
	defer m.wg.Done()

	channel := transport.RoomChannel(roomID)
	logger := m.logger.With().Str("room_id", roomID).Str("channel", channel).Logger()
	readyClosed := false

	for {
		stream, err := m.transport.Subscribe(ctx, channel)
		switch {
		case err == nil:
			if !readyClosed {
				close(ch.ready)
				readyClosed = true
			}
			logger.Debug().Msg("room channel subscribed")
			for data := range stream {
				m.handleRemote(data)
			}
		case errors.Is(err, transport.ErrClosed):
			logger.Debug().Msg("transport closed, room channel dropped")
			m.dropChannel(roomID, ch)
			return
		default:
			logger.Warn().Err(err).Msg("room channel subscribe failed")
		}

		select {
		case <-ctx.Done():
			logger.Debug().Msg("room channel released")
			return
		case <-time.After(resubscribeDelay):
		}
	}
}

// dropChannel forgets ch if it is still the registered channel for roomID.
func (m *Manager) dropChannel(roomID string, ch *roomChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channels[roomID] != ch {
		return
	}
	ch.cancel()
	delete(m.channels, roomID)
	metrics.ClusterRoomChannels.Dec()
}

// handleRemote decodes one payload from the transport. Undecodable payloads
// are logged and dropped so one bad message cannot stop the room's loop.
func (m *Manager) handleRemote(data []byte) {
	metrics.RecordRemoteReceived()

	msg, err := events.UnmarshalClusterMessage(data)
	if err != nil {
		metrics.RecordDecodeFailure()
		m.logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping undecodable cluster message")
		return
	}
	m.OnRemoteMessage(msg)
}
