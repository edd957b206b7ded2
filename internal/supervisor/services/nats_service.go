// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/cowatch/internal/logging"
)

// EmbeddedServer is satisfied by *transport.EmbeddedServer.
type EmbeddedServer interface {
	ClientURL() string
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedServerFactory starts a new embedded broker.
type EmbeddedServerFactory func() (EmbeddedServer, error)

// ErrServerStopped is returned when the embedded broker stops on its own.
var ErrServerStopped = errors.New("embedded NATS server stopped")

// EmbeddedNATSService keeps an in-process NATS server running. A server that
// stops on its own is reported as a failure, and the supervisor's restart
// starts a fresh one. Node transports reconnect to it automatically.
type EmbeddedNATSService struct {
	start           EmbeddedServerFactory
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	name            string
}

// NewEmbeddedNATSService creates the service. A non-positive timeout
// selects 10s.
func NewEmbeddedNATSService(start EmbeddedServerFactory, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &EmbeddedNATSService{
		start:           start,
		checkInterval:   time.Second,
		shutdownTimeout: shutdownTimeout,
		name:            "embedded-nats",
	}
}

// Serve implements suture.Service.
//
// Lifecycle:
//  1. start brings up a fresh server; a start failure is returned
//  2. IsRunning is polled every checkInterval; a stopped server returns
//     ErrServerStopped so the supervisor restarts it
//  3. On ctx end the server is shut down within the timeout
//
// Each restart creates a new server on the configured port, so client URLs
// stay valid across restarts.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	srv, err := s.start()
	if err != nil {
		return fmt.Errorf("start embedded NATS server: %w", err)
	}
	logging.Info().Str("url", srv.ClientURL()).Msg("embedded NATS server running")

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Fresh deadline: ctx is already done.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("embedded NATS shutdown: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			// The broker has no exit channel, so liveness is polled.
			if !srv.IsRunning() {
				return ErrServerStopped
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *EmbeddedNATSService) String() string {
	return s.name
}
