// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package connection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/metrics"
	"github.com/tomtom215/cowatch/internal/validation"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxPerUser    = 5
	DefaultMaxPerRoom    = 200
	DefaultMaxTotal      = 5000
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultMaxDuration   = 12 * time.Hour
	DefaultSweepInterval = 30 * time.Second
	defaultShards        = 32
)

// Options configures a Manager. All caps apply to this node only.
type Options struct {
	NodeID        string
	MaxPerUser    int
	MaxPerRoom    int
	MaxTotal      int
	IdleTimeout   time.Duration
	MaxDuration   time.Duration
	SweepInterval time.Duration
}

type recordShard struct {
	mu      sync.RWMutex
	entries map[ID]*entry
}

// Manager tracks the connections admitted on this node and enforces caps
// and timeouts.
//
// Connection records, per-room counts and per-user counts each live in
// sharded maps with one lock per shard; the node-wide total is an atomic
// counter. No lock spans all rooms or users.
type Manager struct {
	opts Options

	total   atomic.Int64
	perRoom *keyedCounter
	perUser *keyedCounter
	records []*recordShard

	now    func() time.Time
	logger zerolog.Logger
}

// NewManager creates a Manager. Zero options select the defaults.
func NewManager(opts Options) *Manager {
	if opts.MaxPerUser <= 0 {
		opts.MaxPerUser = DefaultMaxPerUser
	}
	if opts.MaxPerRoom <= 0 {
		opts.MaxPerRoom = DefaultMaxPerRoom
	}
	if opts.MaxTotal <= 0 {
		opts.MaxTotal = DefaultMaxTotal
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	m := &Manager{
		opts:    opts,
		perRoom: newKeyedCounter(defaultShards),
		perUser: newKeyedCounter(defaultShards),
		records: make([]*recordShard, defaultShards),
		now:     time.Now,
		logger:  logging.WithNode("connections", opts.NodeID),
	}
	for i := range m.records {
		m.records[i] = &recordShard{entries: make(map[ID]*entry)}
	}
	return m
}

func (m *Manager) recordShard(id ID) *recordShard {
	return m.records[shardIndex(string(id), len(m.records))]
}

// Admit admits a connection for userID in roomID without a closer. Prefer
// AdmitConn once the client transport exists.
func (m *Manager) Admit(userID, roomID string) (ID, error) {
	return m.AdmitConn(userID, roomID, nil)
}

// AdmitConn checks the node-wide, per-room, then per-user cap and creates a
// record holding closer. The first cap hit is returned and nothing is
// recorded. Counts are reserved under their own locks, so no cap is ever
// exceeded, even transiently.
func (m *Manager) AdmitConn(userID, roomID string, closer Closer) (ID, error) {
	if !validation.ValidIdentifier(userID) || !validation.ValidIdentifier(roomID) {
		return "", ErrInvalidIdentity
	}

	if !m.reserveTotal() {
		metrics.RecordAdmission(metrics.AdmissionGlobalLimit)
		return "", fmt.Errorf("%w (max %d)", ErrGlobalLimitExceeded, m.opts.MaxTotal)
	}
	if !m.perRoom.tryIncrement(roomID, m.opts.MaxPerRoom) {
		m.total.Add(-1)
		metrics.RecordAdmission(metrics.AdmissionRoomLimit)
		return "", fmt.Errorf("%w (max %d)", ErrRoomLimitExceeded, m.opts.MaxPerRoom)
	}
	if !m.perUser.tryIncrement(userID, m.opts.MaxPerUser) {
		m.perRoom.decrement(roomID)
		m.total.Add(-1)
		metrics.RecordAdmission(metrics.AdmissionUserLimit)
		return "", fmt.Errorf("%w (max %d)", ErrUserLimitExceeded, m.opts.MaxPerUser)
	}

	now := m.now()
	id := ID(uuid.NewString())
	e := &entry{
		record: Record{
			ID:             id,
			UserID:         userID,
			RoomID:         roomID,
			NodeID:         m.opts.NodeID,
			ConnectedAt:    now,
			LastActivityAt: now,
		},
		closer: closer,
	}

	s := m.recordShard(id)
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()

	metrics.RecordAdmission(metrics.AdmissionAdmitted)
	metrics.Connections.Inc()
	m.logger.Debug().Str("connection_id", string(id)).Str("user_id", userID).Str("room_id", roomID).Msg("connection admitted")
	return id, nil
}

// reserveTotal increments the node total unless it is at the cap.
func (m *Manager) reserveTotal() bool {
	limit := int64(m.opts.MaxTotal)
	for {
		cur := m.total.Load()
		if cur >= limit {
			return false
		}
		if m.total.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release removes the record for id and frees its cap slots. The caller has
// already closed the client transport. Releasing an unknown or already
// removed id is a no-op and returns false.
func (m *Manager) Release(id ID) bool {
	if _, ok := m.remove(id); !ok {
		return false
	}
	m.logger.Debug().Str("connection_id", string(id)).Msg("connection released")
	return true
}

// remove deletes the record and decrements counts exactly once per id.
func (m *Manager) remove(id ID) (*entry, bool) {
	s := m.recordShard(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	m.perUser.decrement(e.record.UserID)
	m.perRoom.decrement(e.record.RoomID)
	m.total.Add(-1)
	metrics.Connections.Dec()
	return e, true
}

// Touch records activity on id.
func (m *Manager) Touch(id ID) error {
	s := m.recordShard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrUnknownConnection
	}
	e.record.LastActivityAt = m.now()
	return nil
}

// Get returns a snapshot of the record for id.
func (m *Manager) Get(id ID) (Record, bool) {
	s := m.recordShard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Record{}, false
	}
	return e.record, true
}

// Count returns the number of admitted connections on this node.
func (m *Manager) Count() int {
	return int(m.total.Load())
}

// RoomCount returns the number of connections in roomID on this node.
func (m *Manager) RoomCount(roomID string) int {
	return m.perRoom.get(roomID)
}

// UserCount returns the number of connections held by userID on this node.
func (m *Manager) UserCount(userID string) int {
	return m.perUser.get(userID)
}

// Stats is a summary for health endpoints.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Users       int `json:"users"`
	MaxTotal    int `json:"max_total"`
}

// Stats returns live counts.
func (m *Manager) Stats() Stats {
	return Stats{
		Connections: m.Count(),
		Rooms:       m.perRoom.keys(),
		Users:       m.perUser.keys(),
		MaxTotal:    m.opts.MaxTotal,
	}
}

// Eviction describes one connection removed by Sweep.
type Eviction struct {
	Record Record
	Reason Reason
}

// Sweep evicts every connection that has been idle longer than the idle
// timeout or connected longer than the max duration at now. Each victim's
// transport is closed before its record is removed.
func (m *Manager) Sweep(now time.Time) []Eviction {
	var candidates []ID

	for _, s := range m.records {
		s.mu.RLock()
		for id, e := range s.entries {
			if e.record.evictionReason(now, m.opts.IdleTimeout, m.opts.MaxDuration) != "" {
				candidates = append(candidates, id)
			}
		}
		s.mu.RUnlock()
	}

	var evicted []Eviction
	for _, c := range candidates {
		if ev, ok := m.evict(c, func(r *Record) Reason {
			// Earlier closers may block, so activity since the scan counts.
			return r.evictionReason(now, m.opts.IdleTimeout, m.opts.MaxDuration)
		}); ok {
			evicted = append(evicted, ev)
		}
	}
	if len(evicted) > 0 {
		m.logger.Info().Int("evicted", len(evicted)).Int("remaining", m.Count()).Msg("connection sweep")
	}
	return evicted
}

// evict closes the transport and then removes the record. decide is
// evaluated against the current record under the shard lock; an empty reason
// keeps the connection. The closer may release the record itself; either way
// the bookkeeping is gone only after the transport was closed.
func (m *Manager) evict(id ID, decide func(*Record) Reason) (Eviction, bool) {
	s := m.recordShard(id)
	s.mu.RLock()
	e, ok := s.entries[id]
	var (
		rec    Record
		closer Closer
		reason Reason
	)
	if ok {
		rec = e.record
		closer = e.closer
		reason = decide(&rec)
	}
	s.mu.RUnlock()
	if !ok || reason == "" {
		return Eviction{}, false
	}

	if closer != nil {
		closer.Close(reason)
	}
	m.remove(id)

	metrics.RecordEviction(string(reason))
	m.logger.Info().Str("connection_id", string(id)).Str("user_id", rec.UserID).Str("room_id", rec.RoomID).
		Str("reason", string(reason)).Msg("connection evicted")
	return Eviction{Record: rec, Reason: reason}, true
}

// CloseAll closes and removes every connection, for shutdown.
func (m *Manager) CloseAll() int {
	var ids []ID
	for _, s := range m.records {
		s.mu.RLock()
		for id := range s.entries {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	n := 0
	for _, id := range ids {
		if _, ok := m.evict(id, func(*Record) Reason { return ReasonShutdown }); ok {
			n++
		}
	}
	return n
}

// Run sweeps on the configured interval until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.opts.SweepInterval).Dur("idle_timeout", m.opts.IdleTimeout).
		Dur("max_duration", m.opts.MaxDuration).Msg("connection sweeper started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("connection sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}
