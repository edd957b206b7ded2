// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// defaultStreamBuffer is the depth of the channel returned by Subscribe.
const defaultStreamBuffer = 256

// pubSub adapts a watermill publisher/subscriber pair to Transport. The
// concrete transports supply the health check and the close hook.
type pubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	healthy    func() bool
	release    func() error
	buffer     int
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newPubSub(pub message.Publisher, sub message.Subscriber, healthy func() bool, release func() error, buffer int, logger zerolog.Logger) *pubSub {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &pubSub{
		publisher:  pub,
		subscriber: sub,
		healthy:    healthy,
		release:    release,
		buffer:     buffer,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *pubSub) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Publish sends data on channel. Watermill publishers do not take a context,
// so the send runs in its own goroutine and the caller is released on ctx
// expiry.
func (p *pubSub) Publish(ctx context.Context, channel string, data []byte) error {
	if p.isClosed() {
		return ErrClosed
	}
	if !p.healthy() {
		return ErrConnectionLost
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	done := make(chan error, 1)
	go func() {
		done <- p.publisher.Publish(channel, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: publish %s: %w", ErrConnectionLost, channel, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: publish %s: %w", ErrTimeout, channel, ctx.Err())
	}
}

// Subscribe starts a pump from the watermill subscription to a byte stream.
// Messages are acked as soon as they are read; payloads arriving while the
// transport reports itself unhealthy are dropped.
func (p *pubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	messages, err := p.subscriber.Subscribe(subCtx, channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, p.buffer)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(out)
		defer cancel()
		p.pump(subCtx, channel, messages, out)
	}()

	p.logger.Debug().Str("channel", channel).Msg("subscribed")
	return out, nil
}

func (p *pubSub) pump(ctx context.Context, channel string, messages <-chan *message.Message, out chan<- []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			payload := []byte(msg.Payload)
			accept := p.healthy()
			msg.Ack()

			if !accept {
				p.logger.Debug().Str("channel", channel).Msg("dropping message received while disconnected")
				continue
			}

			select {
			case out <- payload:
			case <-ctx.Done():
				return
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Connected reports the health flag.
func (p *pubSub) Connected() bool {
	return !p.isClosed() && p.healthy()
}

// Close ends every subscription pump and releases the underlying pub/sub.
func (p *pubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	var err error
	if p.release != nil {
		err = p.release()
	}
	p.wg.Wait()

	p.logger.Info().Msg("transport closed")
	return err
}
