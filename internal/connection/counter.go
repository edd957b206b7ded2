// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package connection

import (
	"hash/fnv"
	"sync"
)

// keyedCounter is a sharded map of per-key counts. Each shard has its own
// lock, so admissions for different rooms or users rarely contend.
type keyedCounter struct {
	shards []*counterShard
}

type counterShard struct {
	mu     sync.Mutex
	counts map[string]int
}

func newKeyedCounter(shards int) *keyedCounter {
	c := &keyedCounter{shards: make([]*counterShard, shards)}
	for i := range c.shards {
		c.shards[i] = &counterShard{counts: make(map[string]int)}
	}
	return c
}

func (c *keyedCounter) shard(key string) *counterShard {
	return c.shards[shardIndex(key, len(c.shards))]
}

// tryIncrement adds one to key unless that would exceed limit.
func (c *keyedCounter) tryIncrement(key string, limit int) bool {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[key] >= limit {
		return false
	}
	s.counts[key]++
	return true
}

// decrement subtracts one from key and drops the key at zero.
func (c *keyedCounter) decrement(key string) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.counts[key]; n <= 1 {
		delete(s.counts, key)
	} else {
		s.counts[key] = n - 1
	}
}

func (c *keyedCounter) get(key string) int {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

func (c *keyedCounter) keys() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.counts)
		s.mu.Unlock()
	}
	return n
}

func shardIndex(key string, n int) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(key))
	return int(f.Sum32() % uint32(n))
}
