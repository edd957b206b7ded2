// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package hub

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/cowatch/internal/events"
)

// subscriptionIDCounter generates unique, monotonically increasing subscription ids.
var subscriptionIDCounter atomic.Uint64

// CloseReason records why a subscription stopped receiving events.
type CloseReason string

const (
	// CloseReasonOwner means the owning connection closed the subscription.
	CloseReasonOwner CloseReason = "owner"

	// CloseReasonOverflow means the subscription's queue filled up. The owner
	// is expected to disconnect the client so it resynchronizes on rejoin.
	CloseReasonOverflow CloseReason = "overflow"

	// CloseReasonShutdown means the hub was closed.
	CloseReasonShutdown CloseReason = "shutdown"
)

// Subscription is a per-room, per-connection output handle. It is owned by
// the connection handler that created it; the hub only holds a lookup entry
// and sends to it without blocking.
type Subscription struct {
	id     uint64
	roomID string

	// mu orders deliveries against Close so a send never hits a closed channel.
	mu     sync.Mutex
	events chan events.RoomEvent
	closed bool
	reason CloseReason
}

func newSubscription(roomID string, buffer int) *Subscription {
	return &Subscription{
		id:     subscriptionIDCounter.Add(1),
		roomID: roomID,
		events: make(chan events.RoomEvent, buffer),
	}
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() uint64 {
	return s.id
}

// RoomID returns the room this subscription receives events for.
func (s *Subscription) RoomID() string {
	return s.roomID
}

// Events returns the delivery channel. It is closed when the subscription closes.
func (s *Subscription) Events() <-chan events.RoomEvent {
	return s.events
}

// Close stops delivery. The hub prunes the entry on its next publish to the
// room; Hub.Unsubscribe removes it immediately. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeWith(CloseReasonOwner)
}

// Closed reports whether the subscription has been closed.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reason returns why the subscription was closed, or "" while open.
func (s *Subscription) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// closeWith closes the channel once and reports whether this call closed it.
func (s *Subscription) closeWith(reason CloseReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.reason = reason
	close(s.events)
	return true
}

// deliveryResult is the outcome of a single enqueue.
type deliveryResult int

const (
	delivered deliveryResult = iota
	skippedClosed
	overflowed
)

// deliver enqueues without blocking. A full queue closes the subscription.
func (s *Subscription) deliver(ev events.RoomEvent) deliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return skippedClosed
	}
	select {
	case s.events <- ev:
		return delivered
	default:
		s.closed = true
		s.reason = CloseReasonOverflow
		close(s.events)
		return overflowed
	}
}
