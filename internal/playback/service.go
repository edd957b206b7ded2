// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/metrics"
)

// Publisher distributes room events. cluster.Manager implements it.
type Publisher interface {
	Publish(ctx context.Context, roomID string, ev events.RoomEvent) error
}

// Service serializes playback mutations per room and announces every
// accepted state. Mutations to different rooms proceed in parallel.
type Service struct {
	store     Store
	publisher Publisher
	locks     *roomLocks
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a Service. A nil publisher disables announcements.
func NewService(store Store, publisher Publisher) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		locks:     newRoomLocks(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logging.WithComponent("playback"),
	}
}

// Get returns the room's current state.
func (s *Service) Get(ctx context.Context, roomID string) (State, error) {
	return s.store.Load(ctx, roomID)
}

// Apply applies mut if expectedVersion is the room's current version. The
// new state is persisted before it is published, and the publish happens
// after the room guard is released.
//
// Returns ErrStaleVersion when another mutation won, ErrInvalidMutation for a
// bad mutation and ErrPersist when the store failed. None of these publish.
func (s *Service) Apply(ctx context.Context, roomID string, expectedVersion uint64, mut Mutation) (State, error) {
	start := time.Now()

	if err := mut.Validate(); err != nil {
		metrics.RecordPlaybackApply(metrics.ApplyInvalid, time.Since(start))
		return State{}, err
	}

	next, err := s.commit(ctx, roomID, expectedVersion, &mut)
	if err != nil {
		result := metrics.ApplyError
		if errors.Is(err, ErrConcurrency) {
			result = metrics.ApplyStale
		}
		metrics.RecordPlaybackApply(result, time.Since(start))
		return State{}, err
	}
	metrics.RecordPlaybackApply(metrics.ApplyApplied, time.Since(start))

	s.announce(ctx, next, &mut)
	return next, nil
}

// commit runs the read-compare-write under the room guard.
func (s *Service) commit(ctx context.Context, roomID string, expectedVersion uint64, mut *Mutation) (State, error) {
	unlock := s.locks.lock(roomID)
	defer unlock()

	cur, err := s.store.Load(ctx, roomID)
	if err != nil {
		return State{}, fmt.Errorf("%w: load: %w", ErrPersist, err)
	}
	if cur.Version != expectedVersion {
		return State{}, fmt.Errorf("%w: expected %d, current %d", ErrStaleVersion, expectedVersion, cur.Version)
	}

	next := mut.applyTo(cur, s.now())
	if err := s.store.CompareAndSwap(ctx, expectedVersion, next); err != nil {
		if errors.Is(err, ErrConcurrency) {
			return State{}, err
		}
		return State{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return next, nil
}

// announce publishes the accepted state. A publish failure does not undo the
// mutation: the state is persisted and the next event carries it in full.
func (s *Service) announce(ctx context.Context, st State, mut *Mutation) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, st.RoomID, st.Event(mut.Actor)); err != nil {
		s.logger.Warn().Err(err).Str("room_id", st.RoomID).Uint64("version", st.Version).
			Msg("playback state persisted but not published")
	}

	if mut.Op != OpChangeMedia {
		return
	}
	ev := events.NewMediaChanged(st.RoomID, events.MediaChanged{
		MediaID:   st.MediaID,
		Version:   st.Version,
		ChangedBy: mut.Actor,
	})
	if err := s.publisher.Publish(ctx, st.RoomID, ev); err != nil {
		s.logger.Warn().Err(err).Str("room_id", st.RoomID).Msg("media change not published")
	}
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
