// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.RoomEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev events.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []events.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.RoomEvent(nil), p.events...)
}

var errDiskFull = errors.New("disk full")

// failingStore loads from an embedded MemoryStore and fails every write.
type failingStore struct {
	*MemoryStore
}

func (failingStore) CompareAndSwap(context.Context, uint64, State) error {
	return errDiskFull
}

// advance applies n seeks so the room reaches version n.
func advance(t testing.TB, svc *Service, roomID string, n int) State {
	t.Helper()
	var st State
	for i := 0; i < n; i++ {
		var err error
		st, err = svc.Apply(context.Background(), roomID, st.Version, Seek(float64(i)))
		if err != nil {
			t.Fatalf("Apply(%d) error = %v", i, err)
		}
	}
	return st
}
