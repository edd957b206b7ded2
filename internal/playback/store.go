// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"context"
	"fmt"
	"sync"
)

// Store persists room playback state with conditional writes.
type Store interface {
	// Load returns the room's state, or NewState(roomID) if none is stored.
	Load(ctx context.Context, roomID string) (State, error)

	// CompareAndSwap stores next only if the stored version equals
	// expectedVersion, and returns ErrStaleVersion otherwise.
	CompareAndSwap(ctx context.Context, expectedVersion uint64, next State) error

	// Close releases the store.
	Close() error
}

// MemoryStore keeps playback state in process memory. State is lost on
// restart; clients resync from the first event after it.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, roomID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[roomID]; ok {
		return st, nil
	}
	return NewState(roomID), nil
}

// CompareAndSwap implements Store.
func (s *MemoryStore) CompareAndSwap(_ context.Context, expectedVersion uint64, next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.states[next.RoomID].Version
	if current != expectedVersion {
		return fmt.Errorf("%w: expected %d, current %d", ErrStaleVersion, expectedVersion, current)
	}
	s.states[next.RoomID] = next
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
