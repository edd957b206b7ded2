// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/hub"
	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/metrics"
	"github.com/tomtom215/cowatch/internal/transport"
)

// DefaultForwardTimeout bounds a single forward to the transport.
const DefaultForwardTimeout = 3 * time.Second

// Options configures a Manager.
type Options struct {
	// NodeID is stamped on every forwarded message. Required.
	NodeID string

	// Transport carries events to other nodes. Nil runs the node in
	// single-node mode.
	Transport transport.Transport

	ForwardTimeout  time.Duration
	DedupWindow     time.Duration
	DedupCapacity   int
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// Hub configures the local hub. Its Observer is replaced.
	Hub hub.Options
}

// Manager is the entry point for room event distribution. Publish always
// delivers to local subscribers first and then forwards to other nodes when a
// healthy transport is present; messages from other nodes are deduplicated
// and delivered locally without being forwarded again.
//
// Callers use the same API in single-node and clustered deployments.
type Manager struct {
	nodeID         string
	hub            *hub.Hub
	transport      transport.Transport
	dedup          *Deduplicator
	breaker        *gobreaker.CircuitBreaker[struct{}]
	failures       *slidingWindow
	forwardTimeout time.Duration

	// degraded is set while forwards are being skipped, so the warning is
	// logged once per outage.
	degraded atomic.Bool

	mu       sync.Mutex
	channels map[string]*roomChannel
	closed   bool
	wg       sync.WaitGroup

	logger zerolog.Logger
}

// New creates a Manager and its local hub.
func New(opts Options) (*Manager, error) {
	if opts.NodeID == "" {
		return nil, errors.New("node id is required")
	}
	if opts.ForwardTimeout <= 0 {
		opts.ForwardTimeout = DefaultForwardTimeout
	}

	m := &Manager{
		nodeID:         opts.NodeID,
		transport:      opts.Transport,
		dedup:          NewDeduplicator(opts.DedupWindow, opts.DedupCapacity),
		breaker:        newForwardBreaker(opts.BreakerFailures, opts.BreakerTimeout),
		failures:       newSlidingWindow(time.Minute, 12, nil),
		forwardTimeout: opts.ForwardTimeout,
		channels:       make(map[string]*roomChannel),
		logger:         logging.WithNode("cluster", opts.NodeID),
	}

	hubOpts := opts.Hub
	hubOpts.Observer = nil
	if m.transport != nil {
		hubOpts.Observer = m
	}
	m.hub = hub.New(hubOpts)

	mode := ModeSingleNode
	if m.transport != nil {
		mode = ModeClustered
	}
	m.logger.Info().Str("mode", string(mode)).Dur("forward_timeout", m.forwardTimeout).Msg("cluster manager started")
	return m, nil
}

// NodeID returns this node's identifier.
func (m *Manager) NodeID() string {
	return m.nodeID
}

// Hub exposes the local hub for read-only queries.
func (m *Manager) Hub() *hub.Hub {
	return m.hub
}

// Subscribe registers a local subscription for roomID. The caller owns the
// subscription and must Unsubscribe it when its connection closes.
func (m *Manager) Subscribe(roomID string) *hub.Subscription {
	return m.hub.Subscribe(roomID)
}

// Unsubscribe closes and removes sub.
func (m *Manager) Unsubscribe(sub *hub.Subscription) {
	m.hub.Unsubscribe(sub)
}

// Publish delivers ev to every local subscription of roomID before returning
// and then forwards it to other nodes. Forwarding is bounded by the forward
// timeout and its failures are logged and counted, never returned. An error
// is returned only for an invalid event or a closed manager.
func (m *Manager) Publish(ctx context.Context, roomID string, ev events.RoomEvent) error {
	if m.isClosed() {
		return ErrClosed
	}
	if ev.RoomID == "" {
		ev.RoomID = roomID
	}
	if ev.RoomID != roomID {
		return fmt.Errorf("%w: event room %q does not match %q", ErrPublish, ev.RoomID, roomID)
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	msg := events.NewClusterMessage(m.nodeID, ev)
	// Mark before anything leaves the node so the echo is recognized.
	m.dedup.MarkSeen(msg.MessageID)

	m.hub.PublishLocal(roomID, ev)
	metrics.RecordPublish()

	m.forward(ctx, &msg)
	return nil
}

// OnRemoteMessage delivers a message received from another node to local
// subscribers unless its id was already seen. It never forwards. It reports
// whether the message was delivered.
func (m *Manager) OnRemoteMessage(msg *events.ClusterMessage) bool {
	if msg == nil {
		return false
	}
	if m.dedup.CheckAndMark(msg.MessageID) {
		metrics.RecordDuplicate()
		m.logger.Trace().Str("message_id", msg.MessageID).Str("origin", msg.OriginNodeID).Msg("duplicate suppressed")
		return false
	}

	m.hub.PublishLocal(msg.Event.RoomID, msg.Event)
	return true
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// forward sends msg to the transport when one is present and healthy.
func (m *Manager) forward(ctx context.Context, msg *events.ClusterMessage) {
	if m.transport == nil {
		return
	}

	roomID := msg.Event.RoomID
	if !m.transport.Connected() {
		metrics.RecordForward(metrics.ForwardSkipped, 0)
		if m.degraded.CompareAndSwap(false, true) {
			m.logger.Warn().Str("room_id", roomID).Msg("remote transport unavailable, delivering locally only")
		}
		return
	}

	data, err := events.MarshalClusterMessage(msg)
	if err != nil {
		metrics.RecordForward(metrics.ForwardFailed, 0)
		m.logger.Warn().Err(err).Str("room_id", roomID).Msg("encode cluster message")
		return
	}

	// The forward outlives a canceled caller but never the forward timeout.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.forwardTimeout)
	defer cancel()

	start := time.Now()
	_, err = m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.transport.Publish(fctx, transport.RoomChannel(roomID), data)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordForward(metrics.ForwardOK, elapsed)
		if m.degraded.CompareAndSwap(true, false) {
			m.logger.Info().Msg("remote transport recovered, forwarding resumed")
		}
	case breakerRejected(err):
		metrics.RecordForward(metrics.ForwardSkipped, 0)
		if m.degraded.CompareAndSwap(false, true) {
			m.logger.Warn().Str("room_id", roomID).Msg("forward circuit open, delivering locally only")
		}
	default:
		metrics.RecordForward(metrics.ForwardFailed, elapsed)
		m.failures.Increment()
		m.logger.Warn().Err(err).Str("room_id", roomID).Str("message_id", msg.MessageID).
			Dur("elapsed", elapsed).Msg("forward to remote transport failed")
	}
}

// Close stops every room channel and closes all local subscriptions. The
// transport is left open for its owner to close.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for roomID, ch := range m.channels {
		ch.cancel()
		delete(m.channels, roomID)
		metrics.ClusterRoomChannels.Dec()
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.hub.Close()

	m.logger.Info().Msg("cluster manager closed")
	return nil
}
