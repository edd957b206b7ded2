// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package transport

import (
	"github.com/ThreeDotsLabs/watermill/message"
)

// blockingPublisher never returns from Publish until block is closed.
type blockingPublisher struct {
	block chan struct{}
}

func (p blockingPublisher) Publish(string, ...*message.Message) error {
	<-p.block
	return nil
}

func (p blockingPublisher) Close() error { return nil }
