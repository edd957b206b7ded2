// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package hub

import (
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/metrics"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultShards = 64
	DefaultBuffer = 64
)

// RoomObserver is notified when a room gains its first subscription or loses
// its last one, including losses found by lazy pruning. Callbacks run while
// the room's shard is locked, so activation and deactivation for one room
// are never reordered; they must not block or call back into the Hub.
type RoomObserver interface {
	RoomActivated(roomID string)
	RoomDeactivated(roomID string)
}

// Options configures a Hub.
type Options struct {
	// Shards is the number of independently locked registry partitions.
	Shards int
	// Buffer is the per-subscription queue depth.
	Buffer int
	// Observer receives room activation changes. May be nil.
	Observer RoomObserver
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[uint64]*Subscription
}

// Hub is the in-process publish/subscribe registry keyed by room id. Rooms
// hash onto shards, each with its own lock, so rooms on different shards
// never contend.
type Hub struct {
	shards   []*shard
	buffer   int
	observer RoomObserver
	logger   zerolog.Logger
}

// New creates a Hub.
func New(opts Options) *Hub {
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	h := &Hub{
		shards:   make([]*shard, opts.Shards),
		buffer:   opts.Buffer,
		observer: opts.Observer,
		logger:   logging.WithComponent("hub"),
	}
	for i := range h.shards {
		h.shards[i] = &shard{rooms: make(map[string]map[uint64]*Subscription)}
	}
	return h
}

func (h *Hub) shardFor(roomID string) *shard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(roomID))
	return h.shards[f.Sum32()%uint32(len(h.shards))]
}

// Subscribe registers a new subscription for roomID.
func (h *Hub) Subscribe(roomID string) *Subscription {
	sub := newSubscription(roomID, h.buffer)
	s := h.shardFor(roomID)

	s.mu.Lock()
	subs, ok := s.rooms[roomID]
	if !ok {
		subs = make(map[uint64]*Subscription)
		s.rooms[roomID] = subs
	}
	subs[sub.id] = sub
	if !ok && h.observer != nil {
		h.observer.RoomActivated(roomID)
	}
	s.mu.Unlock()

	metrics.HubSubscriptions.Inc()
	h.logger.Debug().Str("room_id", roomID).Uint64("subscription_id", sub.id).Msg("subscription registered")
	return sub
}

// Unsubscribe closes sub and removes it from the registry. Safe to call for a
// subscription that was already pruned.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Close()

	s := h.shardFor(sub.roomID)
	s.mu.Lock()
	removed := h.removeLocked(s, sub.roomID, sub.id)
	s.mu.Unlock()

	if removed {
		h.logger.Debug().Str("room_id", sub.roomID).Uint64("subscription_id", sub.id).Msg("subscription removed")
	}
}

// removeLocked deletes one entry and reports whether it existed. Callers hold s.mu.
func (h *Hub) removeLocked(s *shard, roomID string, id uint64) bool {
	subs, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := subs[id]; !ok {
		return false
	}
	delete(subs, id)
	metrics.HubSubscriptions.Dec()
	if len(subs) == 0 {
		delete(s.rooms, roomID)
		if h.observer != nil {
			h.observer.RoomDeactivated(roomID)
		}
	}
	return true
}

// PublishLocal enqueues ev on every open subscription registered for roomID
// and returns how many accepted it. Enqueueing happens before PublishLocal
// returns; a subscription whose queue is full is closed with
// CloseReasonOverflow instead of blocking the publisher. Closed subscriptions
// found along the way are pruned.
func (h *Hub) PublishLocal(roomID string, ev events.RoomEvent) int {
	s := h.shardFor(roomID)

	s.mu.RLock()
	subs := s.rooms[roomID]
	var stale []uint64
	deliveredCount := 0
	for id, sub := range subs {
		switch sub.deliver(ev) {
		case delivered:
			deliveredCount++
			metrics.RecordDelivery()
		case skippedClosed:
			stale = append(stale, id)
			metrics.RecordDrop(metrics.DropClosed)
		case overflowed:
			stale = append(stale, id)
			metrics.RecordDrop(metrics.DropFull)
			h.logger.Warn().Str("room_id", roomID).Uint64("subscription_id", id).
				Msg("subscription queue full, closing slow subscriber")
		}
	}
	s.mu.RUnlock()

	if len(stale) > 0 {
		s.mu.Lock()
		for _, id := range stale {
			h.removeLocked(s, roomID, id)
		}
		s.mu.Unlock()
	}

	return deliveredCount
}

// SubscriberCount returns the number of registered subscriptions for roomID,
// including closed ones not yet pruned.
func (h *Hub) SubscriberCount(roomID string) int {
	s := h.shardFor(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[roomID])
}

// Rooms returns the ids of rooms with at least one registered subscription.
func (h *Hub) Rooms() []string {
	var rooms []string
	for _, s := range h.shards {
		s.mu.RLock()
		for roomID := range s.rooms {
			rooms = append(rooms, roomID)
		}
		s.mu.RUnlock()
	}
	return rooms
}

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int {
	n := 0
	for _, s := range h.shards {
		s.mu.RLock()
		n += len(s.rooms)
		s.mu.RUnlock()
	}
	return n
}

// Close closes every subscription and empties the registry.
func (h *Hub) Close() {
	closedCount := 0
	for _, s := range h.shards {
		s.mu.Lock()
		for roomID, subs := range s.rooms {
			for id, sub := range subs {
				sub.closeWith(CloseReasonShutdown)
				h.removeLocked(s, roomID, id)
				closedCount++
			}
		}
		s.mu.Unlock()
	}
	h.logger.Info().Int("subscriptions_closed", closedCount).Msg("hub closed")
}
