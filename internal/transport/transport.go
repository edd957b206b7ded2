// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package transport

import (
	"context"
	"errors"
)

// Transport errors.
var (
	// ErrConnectionLost is returned when the broker is unreachable or a
	// publish failed at the connection level.
	ErrConnectionLost = errors.New("transport connection lost")

	// ErrTimeout is returned when a publish did not complete before the
	// caller's deadline.
	ErrTimeout = errors.New("transport operation timed out")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport closed")
)

// RoomChannelPrefix prefixes every room channel name.
const RoomChannelPrefix = "room."

// Transport carries opaque payloads between nodes on named channels. Delivery
// is at-most-once, ordered per channel from a single publisher, and fans out
// to every subscriber of the channel on every node.
type Transport interface {
	// Publish sends data on channel. It returns ErrConnectionLost while the
	// broker is unreachable and ErrTimeout when ctx ends first.
	Publish(ctx context.Context, channel string, data []byte) error

	// Subscribe returns a stream of payloads published on channel. The stream
	// closes when ctx is canceled or the transport closes.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Connected reports the current health flag. It is cheap enough to check
	// before every publish.
	Connected() bool

	// Close releases broker connections and ends all subscriptions.
	Close() error
}

// RoomChannel returns the channel name carrying events for roomID.
func RoomChannel(roomID string) string {
	return RoomChannelPrefix + roomID
}
