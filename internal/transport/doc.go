// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package transport moves opaque room event payloads between cowatch nodes.

Two implementations share one watermill-based core:

  - NATSTransport publishes and subscribes on core NATS subjects through
    watermill-nats. JetStream is disabled; delivery is at-most-once.
  - ChannelTransport runs over an in-process watermill gochannel bus. Several
    transports on one bus behave like a cluster, which makes it the transport
    for multi-node tests.

Channels are named room.<room id> (see RoomChannel). Every node hosting a
room subscribes to its channel without a queue group, so each message fans
out to all of them, including the publisher itself.

# Health

Connected is driven by nats.go connection callbacks and is checked before
every publish. Publishing while disconnected returns ErrConnectionLost
immediately; reconnect buffering is off so nothing stale is flushed when the
broker returns. Reconnects back off exponentially from ReconnectWait up to
MaxReconnectWait.

# Embedded Broker

EmbeddedServer starts a nats-server inside the process. A node with
NATS_EMBEDDED=true connects to its own broker and other nodes can use it as
their NATS_URL.
*/
package transport
