// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/hub"
	"github.com/tomtom215/cowatch/internal/transport"
)

// fakeTransport records publishes and lets tests inject inbound payloads.
type fakeTransport struct {
	connected  atomic.Bool
	publishErr error
	published  atomic.Int64

	mu      sync.Mutex
	streams map[string]chan []byte

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	f := &fakeTransport{streams: make(map[string]chan []byte), done: make(chan struct{})}
	f.connected.Store(true)
	return f
}

func (f *fakeTransport) Publish(ctx context.Context, _ string, _ []byte) error {
	f.published.Add(1)
	if f.publishErr != nil {
		return f.publishErr
	}
	return ctx.Err()
}

func (f *fakeTransport) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if f.closed.Load() {
		return nil, transport.ErrClosed
	}
	ch := make(chan []byte, 16)
	out := make(chan []byte)
	f.mu.Lock()
	f.streams[channel] = ch
	f.mu.Unlock()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case data := <-ch:
				select {
				case out <- data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeTransport) inject(channel string, data []byte) {
	f.mu.Lock()
	ch := f.streams[channel]
	f.mu.Unlock()
	ch <- data
}

func (f *fakeTransport) Connected() bool { return f.connected.Load() }

// Close ends every open stream and fails later subscribes with ErrClosed.
func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		close(f.done)
	})
	return nil
}

var _ transport.Transport = (*fakeTransport)(nil)

func newManager(t *testing.T, nodeID string, tr transport.Transport) *Manager {
	t.Helper()
	m, err := New(Options{NodeID: nodeID, Transport: tr, ForwardTimeout: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// waitRoomChannel blocks until the manager's transport subscription for
// roomID is established.
func waitRoomChannel(t *testing.T, m *Manager, roomID string) {
	t.Helper()
	m.mu.Lock()
	ch, ok := m.channels[roomID]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no room channel for %s", roomID)
	}
	select {
	case <-ch.ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("room channel for %s not ready", roomID)
	}
}

func waitUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func chatEvent(roomID, text string) events.RoomEvent {
	return events.NewChatPosted(roomID, events.ChatPosted{MessageID: text, UserID: "u1", Text: text})
}

func nextEvent(t *testing.T, sub *hub.Subscription) events.RoomEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return events.RoomEvent{}
}

func expectNoEvent(t *testing.T, sub *hub.Subscription) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(150 * time.Millisecond):
	}
}
