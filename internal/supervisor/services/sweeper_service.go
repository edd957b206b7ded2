// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/cowatch/internal/logging"
)

// ConnectionSweeper is satisfied by *connection.Manager.
type ConnectionSweeper interface {
	Run(ctx context.Context) error
	CloseAll() int
}

// SweeperService runs the idle and max-duration sweep. When the node shuts
// down it closes every remaining connection with the shutdown reason, so
// clients reconnect elsewhere instead of waiting for a read timeout.
type SweeperService struct {
	sweeper ConnectionSweeper
	name    string
}

// NewSweeperService wraps sweeper.
func NewSweeperService(sweeper ConnectionSweeper) *SweeperService {
	return &SweeperService{sweeper: sweeper, name: "connection-sweeper"}
}

// Serve implements suture.Service.
//
// Lifecycle:
//  1. Run sweeps on its interval until ctx ends
//  2. If Run returns while ctx is still live, that is a failure and the
//     supervisor restarts the service
//  3. On ctx end, every remaining connection is closed with the shutdown
//     reason before Serve returns
func (s *SweeperService) Serve(ctx context.Context) error {
	err := s.sweeper.Run(ctx)
	if ctx.Err() == nil {
		// Run only returns early on a bug; a nil error still counts.
		if err == nil {
			err = errors.New("sweeper stopped unexpectedly")
		}
		return fmt.Errorf("connection sweeper: %w", err)
	}

	// Shutdown path.
	if n := s.sweeper.CloseAll(); n > 0 {
		logging.Info().Int("connections", n).Msg("closed connections for shutdown")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logs.
func (s *SweeperService) String() string {
	return s.name
}
