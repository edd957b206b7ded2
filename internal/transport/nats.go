// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package transport

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/metrics"
)

// NATSConfig configures a NATSTransport.
type NATSConfig struct {
	// URL is one server URL or a comma-separated seed list.
	URL string
	// Name identifies the node's connections on the broker.
	Name string
	// ReconnectWait is the first reconnect delay; later attempts back off
	// exponentially up to MaxReconnectWait.
	ReconnectWait    time.Duration
	MaxReconnectWait time.Duration
	// MaxReconnects bounds reconnect attempts; -1 retries forever.
	MaxReconnects int
	// CloseTimeout bounds subscriber shutdown.
	CloseTimeout time.Duration
	// Buffer is the depth of each subscription stream.
	Buffer int
}

// DefaultNATSConfig returns reconnect-forever settings suitable for a node
// that must ride out broker restarts.
func DefaultNATSConfig(url, name string) NATSConfig {
	return NATSConfig{
		URL:              url,
		Name:             name,
		ReconnectWait:    2 * time.Second,
		MaxReconnectWait: 30 * time.Second,
		MaxReconnects:    -1,
		CloseTimeout:     5 * time.Second,
		Buffer:           defaultStreamBuffer,
	}
}

// NATSTransport is a Transport over core NATS subjects. JetStream is
// disabled: room events are live deltas and a node that misses one resyncs
// from authoritative state rather than replaying a stream.
//
// The publisher and subscriber hold separate connections. The transport is
// healthy only while both are connected.
type NATSTransport struct {
	*pubSub

	pubUp atomic.Bool
	subUp atomic.Bool

	logger zerolog.Logger
}

// NewNATSTransport dials the broker. The initial connect is retried in the
// background, so a node can start before its broker; Connected reports false
// until both connections are up.
func NewNATSTransport(cfg NATSConfig) (*NATSTransport, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnectWait < cfg.ReconnectWait {
		cfg.MaxReconnectWait = cfg.ReconnectWait
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}

	t := &NATSTransport{logger: logging.WithComponent("transport")}
	wmLogger := logging.NewWatermillAdapter("watermill")

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: t.connOptions(cfg, "pub", &t.pubUp),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL: cfg.URL,
		// No queue group: every node must see every message on a room subject.
		QueueGroupPrefix: "",
		SubscribersCount: 1,
		AckWaitTimeout:   5 * time.Second,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      t.connOptions(cfg, "sub", &t.subUp),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	release := func() error {
		subErr := sub.Close()
		pubErr := pub.Close()
		t.pubUp.Store(false)
		t.subUp.Store(false)
		metrics.SetTransportConnected(false)
		return errors.Join(subErr, pubErr)
	}
	t.pubSub = newPubSub(pub, sub, t.bothConnected, release, cfg.Buffer, t.logger)

	t.logger.Info().Str("url", cfg.URL).Str("name", cfg.Name).Msg("NATS transport created")
	return t, nil
}

func (t *NATSTransport) bothConnected() bool {
	return t.pubUp.Load() && t.subUp.Load()
}

func (t *NATSTransport) setUp(role string, up *atomic.Bool, value bool) {
	was := t.bothConnected()
	up.Store(value)
	now := t.bothConnected()
	metrics.SetTransportConnected(now)
	if was != now {
		t.logger.Info().Str("role", role).Bool("connected", now).Msg("transport health changed")
	}
}

// connOptions builds the nats.go options for one connection. Reconnect
// buffering is disabled so a publish during an outage fails fast instead of
// flushing stale events after the broker returns.
func (t *NATSTransport) connOptions(cfg NATSConfig, role string, up *atomic.Bool) []natsgo.Option {
	name := role
	if cfg.Name != "" {
		name = cfg.Name + "-" + role
	}
	return []natsgo.Option{
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.CustomReconnectDelay(backoff(cfg.ReconnectWait, cfg.MaxReconnectWait)),
		natsgo.ReconnectBufSize(-1),
		natsgo.ConnectHandler(func(nc *natsgo.Conn) {
			t.setUp(role, up, true)
			t.logger.Info().Str("role", role).Str("url", nc.ConnectedUrlRedacted()).Msg("NATS connected")
		}),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			t.setUp(role, up, false)
			metrics.TransportDisconnects.Inc()
			if err != nil {
				t.logger.Warn().Err(err).Str("role", role).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			t.setUp(role, up, true)
			metrics.TransportReconnects.Inc()
			t.logger.Info().Str("role", role).Str("url", nc.ConnectedUrlRedacted()).Msg("NATS reconnected")
		}),
		natsgo.ClosedHandler(func(_ *natsgo.Conn) {
			t.setUp(role, up, false)
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			ev := t.logger.Warn().Err(err).Str("role", role)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS async error")
		}),
	}
}

// backoff returns a reconnect delay that doubles per attempt from base up to
// limit.
func backoff(base, limit time.Duration) natsgo.ReconnectDelayHandler {
	return func(attempts int) time.Duration {
		d := base
		for i := 1; i < attempts && d < limit; i++ {
			d *= 2
		}
		if d > limit {
			d = limit
		}
		return d
	}
}

var _ Transport = (*NATSTransport)(nil)
