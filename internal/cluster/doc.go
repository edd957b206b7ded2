// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package cluster distributes room events across cowatch nodes.

Manager is the only type the rest of the application talks to:

	mgr, err := cluster.New(cluster.Options{NodeID: cfg.Node.ID, Transport: tr})
	sub := mgr.Subscribe("r1")
	defer mgr.Unsubscribe(sub)
	err = mgr.Publish(ctx, "r1", events.NewChatPosted("r1", chat))

# Publish Path

Publish assigns a fresh message id, marks it seen in the Deduplicator, and
delivers to the local hub before returning. It then forwards the envelope to
the transport channel room.<id> when a transport is configured and reports
connected. The forward is bounded by ForwardTimeout and runs behind a
gobreaker circuit breaker; failures are logged at warn and counted, never
returned.

# Receive Path

The manager observes the hub. When a room gets its first local subscriber it
subscribes to the room's channel, and it cancels that subscription when the
last local subscriber leaves. Each received payload is decoded, checked
against the Deduplicator (which suppresses the node's own echoes), and
delivered to the local hub. Received messages are never forwarded again.

# Degraded Mode

With no transport, or with one that is disconnected or behind an open
breaker, Publish behaves exactly as in single-node mode. Health reports the
effective Mode for readiness probes.
*/
package cluster
