// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import (
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	w := newSlidingWindow(time.Minute, 6, clock.Now)

	w.Increment()
	w.Increment()
	if got := w.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	clock.Advance(30 * time.Second)
	w.Increment()
	if got := w.Count(); got != 3 {
		t.Fatalf("Count() = %d after 30s, want 3", got)
	}

	clock.Advance(35 * time.Second)
	if got := w.Count(); got != 1 {
		t.Fatalf("Count() = %d after first bucket aged out, want 1", got)
	}

	clock.Advance(2 * time.Minute)
	if got := w.Count(); got != 0 {
		t.Fatalf("Count() = %d after full window, want 0", got)
	}
}
