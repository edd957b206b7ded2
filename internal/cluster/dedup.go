// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import (
	"sync"
	"time"

	"github.com/tomtom215/cowatch/internal/metrics"
)

// Dedup defaults.
const (
	DefaultDedupWindow   = 60 * time.Second
	DefaultDedupCapacity = 10000
)

// dedupEntry is a node in the first-seen ordered list.
type dedupEntry struct {
	id        string
	expiresAt time.Time
	prev      *dedupEntry
	next      *dedupEntry
}

// Deduplicator is a bounded, TTL-evicting set of recently seen message ids.
//
// Entries are kept in first-seen order in a doubly-linked list with a map
// index, so every operation is O(1) amortized. Because every entry gets the
// same TTL, list order is also expiry order: expired entries are always at
// the tail and are trimmed on each insert. Once the set is at capacity the
// oldest entry is evicted even if unexpired, so dedup is approximate under
// sustained load: a rare duplicate delivery, never a lost message.
//
// Lookups do not refresh an entry; an id is forgotten one window after it
// was first seen no matter how often it is repeated.
type Deduplicator struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	items    map[string]*dedupEntry

	// head.next is the newest entry, tail.prev the oldest.
	head *dedupEntry
	tail *dedupEntry

	now func() time.Time
}

// NewDeduplicator creates a deduplicator. Non-positive arguments select the
// defaults.
func NewDeduplicator(ttl time.Duration, capacity int) *Deduplicator {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	if ttl <= 0 {
		ttl = DefaultDedupWindow
	}

	d := &Deduplicator{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*dedupEntry, capacity),
		head:     &dedupEntry{},
		tail:     &dedupEntry{},
		now:      time.Now,
	}
	d.head.next = d.tail
	d.tail.prev = d.head
	return d
}

// MarkSeen records id. Marking an id that is already live is a no-op.
func (d *Deduplicator) MarkSeen(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markLocked(id, d.now())
}

// HasSeen reports whether id was marked within the window.
func (d *Deduplicator) HasSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.items[id]
	return ok && d.now().Before(entry.expiresAt)
}

// CheckAndMark reports whether id was already seen and marks it if not, as
// one atomic step. Two goroutines racing on the same id get exactly one false.
func (d *Deduplicator) CheckAndMark(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.markLocked(id, d.now())
}

// Len returns the number of entries held, including expired entries not yet
// trimmed.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// CleanupExpired removes expired entries and returns how many were removed.
func (d *Deduplicator) CleanupExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trimExpiredLocked(d.now())
}

// markLocked inserts id and reports whether it was new.
func (d *Deduplicator) markLocked(id string, now time.Time) bool {
	d.trimExpiredLocked(now)

	if entry, ok := d.items[id]; ok {
		if now.Before(entry.expiresAt) {
			return false
		}
		d.removeEntry(entry)
	}

	entry := &dedupEntry{id: id, expiresAt: now.Add(d.ttl)}
	d.addToFront(entry)
	d.items[id] = entry

	for len(d.items) > d.capacity {
		d.removeEntry(d.tail.prev)
		metrics.RecordDedupEviction("capacity")
	}
	return true
}

// trimExpiredLocked walks from the oldest entry while entries are expired.
func (d *Deduplicator) trimExpiredLocked(now time.Time) int {
	removed := 0
	for entry := d.tail.prev; entry != d.head && !now.Before(entry.expiresAt); entry = d.tail.prev {
		d.removeEntry(entry)
		removed++
	}
	if removed > 0 {
		metrics.DedupEvictions.WithLabelValues("expired").Add(float64(removed))
	}
	return removed
}

func (d *Deduplicator) addToFront(entry *dedupEntry) {
	entry.prev = d.head
	entry.next = d.head.next
	d.head.next.prev = entry
	d.head.next = entry
}

func (d *Deduplicator) removeEntry(entry *dedupEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(d.items, entry.id)
}
