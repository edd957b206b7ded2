// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import (
	"sync"
	"time"
)

// slidingWindow counts events over a trailing window split into buckets.
// Count is O(buckets); Increment is O(1).
type slidingWindow struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	current    int
	lastUpdate time.Time
	now        func() time.Time
}

func newSlidingWindow(window time.Duration, numBuckets int, now func() time.Time) *slidingWindow {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &slidingWindow{
		buckets:    make([]int64, numBuckets),
		bucketSize: window / time.Duration(numBuckets),
		lastUpdate: now(),
		now:        now,
	}
}

func (w *slidingWindow) Increment() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	w.buckets[w.current]++
}

func (w *slidingWindow) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()

	var total int64
	for _, n := range w.buckets {
		total += n
	}
	return total
}

// advance clears buckets that fell out of the window. Callers hold mu.
func (w *slidingWindow) advance() {
	now := w.now()
	elapsed := int(now.Sub(w.lastUpdate) / w.bucketSize)
	if elapsed <= 0 {
		return
	}

	if elapsed >= len(w.buckets) {
		for i := range w.buckets {
			w.buckets[i] = 0
		}
		w.current = 0
	} else {
		for i := 0; i < elapsed; i++ {
			w.current = (w.current + 1) % len(w.buckets)
			w.buckets[w.current] = 0
		}
	}
	// Keep the sub-bucket remainder so bucket boundaries do not drift.
	w.lastUpdate = w.lastUpdate.Add(time.Duration(elapsed) * w.bucketSize)
}
