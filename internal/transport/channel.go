// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package transport

import (
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/cowatch/internal/logging"
)

// NewBus returns an in-process broker that several ChannelTransports can
// share to behave like nodes of one cluster. Publish blocks until every
// subscriber has taken the message, which keeps per-channel order.
func NewBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            int64(defaultStreamBuffer),
		BlockPublishUntilSubscriberAck: true,
	}, logging.NewWatermillAdapter("gochannel"))
}

// ChannelTransport is a Transport over a shared in-process bus. It backs
// single-binary development setups and multi-node tests. SetConnected
// simulates a partition: while disconnected, publishes fail with
// ErrConnectionLost and inbound messages are dropped.
//
// Closing a ChannelTransport ends its subscriptions but leaves the shared
// bus open; the bus owner closes it.
type ChannelTransport struct {
	*pubSub
	up atomic.Bool
}

// NewChannelTransport attaches a node named name to bus.
func NewChannelTransport(bus *gochannel.GoChannel, name string) *ChannelTransport {
	t := &ChannelTransport{}
	t.up.Store(true)
	logger := logging.WithNode("transport", name)
	t.pubSub = newPubSub(bus, bus, t.up.Load, nil, defaultStreamBuffer, logger)
	return t
}

// SetConnected flips the simulated link state.
func (t *ChannelTransport) SetConnected(connected bool) {
	if t.up.Swap(connected) != connected {
		t.logger.Info().Bool("connected", connected).Msg("transport health changed")
	}
}

var _ Transport = (*ChannelTransport)(nil)
