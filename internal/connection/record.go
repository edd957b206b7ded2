// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package connection

import "time"

// ID identifies an admitted connection.
type ID string

// Reason explains why the manager closed a connection.
type Reason string

// Eviction reasons.
const (
	ReasonIdleTimeout Reason = "idle_timeout"
	ReasonMaxDuration Reason = "max_duration"
	ReasonShutdown    Reason = "shutdown"
)

// Closer closes the client transport behind a connection. Close must not
// block for long and must tolerate being called after the client already
// went away.
type Closer interface {
	Close(reason Reason)
}

// CloserFunc adapts a function to Closer.
type CloserFunc func(reason Reason)

// Close calls f(reason).
func (f CloserFunc) Close(reason Reason) { f(reason) }

// Record is the bookkeeping for one admitted connection. Copies returned by
// the manager are snapshots.
type Record struct {
	ID             ID        `json:"id"`
	UserID         string    `json:"user_id"`
	RoomID         string    `json:"room_id"`
	NodeID         string    `json:"node_id"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// entry is the mutable record held in a shard.
type entry struct {
	record Record
	closer Closer
}

// evictionReason returns why r should be evicted at now, or "" if it should
// stay. Max duration wins when both apply.
func (r *Record) evictionReason(now time.Time, idle, maxDuration time.Duration) Reason {
	if maxDuration > 0 && now.Sub(r.ConnectedAt) > maxDuration {
		return ReasonMaxDuration
	}
	if idle > 0 && now.Sub(r.LastActivityAt) > idle {
		return ReasonIdleTimeout
	}
	return ""
}
