// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package hub provides the in-process, per-room publish/subscribe registry.

The Hub is the only delivery component a single-node deployment needs. The
cluster manager layers cross-node forwarding on top of it.

# Ownership

A Subscription belongs to the connection handler that created it. The hub
keeps a lookup entry and never blocks on it:

	sub := h.Subscribe("r1")
	defer h.Unsubscribe(sub)
	for ev := range sub.Events() {
	    write(ev)
	}

Closing a subscription without Unsubscribe is allowed; the entry is pruned
the next time anything is published to the room.

# Ordering

Events published to one room by one caller reach each subscription in
publish order. Concurrent publishers to the same room may interleave, and
there is no ordering across rooms.

# Backpressure

Each subscription has a bounded queue. When it is full the hub closes the
subscription (Reason() == CloseReasonOverflow) rather than skip an event
silently or stall the publisher; the connection handler then disconnects
the client, which reloads room state when it reconnects.

# Concurrency

Rooms are spread over independently locked shards. Publishing takes the
shard's read lock, so concurrent publishes to rooms on the same shard do
not serialize, and rooms on different shards never contend.
*/
package hub
