// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package playback holds each room's versioned playback state.

Every accepted mutation increments the room's version by exactly one.
Callers pass the version they last observed; when it is not current Apply
returns ErrStaleVersion and nothing changes, so of two concurrent mutations
issued against the same version exactly one wins.

	st, err := svc.Apply(ctx, "room-1", st.Version, playback.Seek(42).By(userID))
	if errors.Is(err, playback.ErrStaleVersion) {
		// reload and retry, or tell the client
	}

Accepted states are persisted first and then published as a
playback_changed event carrying the full state, outside the room's guard.

# Stores

  - MemoryStore: process memory, lost on restart
  - BadgerStore: BadgerDB on local disk, one transaction per mutation
*/
package playback
