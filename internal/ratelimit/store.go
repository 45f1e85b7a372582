package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

// entry holds the pressure recorded for one identity and when it was last
// touched by an admission check.
type entry struct {
	pressure   float64
	lastUpdate time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// store is a sharded map of entries. Each shard has its own mutex, so updates
// for keys in different shards never contend.
type store struct {
	shards []*shard
	mask   uint64
}

// newStore creates a store with n shards, rounded up to a power of two.
func newStore(n int) *store {
	if n <= 0 {
		n = defaultShards
	}
	size := 1
	for size < n {
		size <<= 1
	}
	s := &store{
		shards: make([]*shard, size),
		mask:   uint64(size - 1),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

func (s *store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)&s.mask]
}

// update runs fn with the key's shard locked. fn receives the current entry,
// or nil when the key is absent, and returns the entry to store. Returning nil
// removes the key.
func (s *store) update(key string, fn func(e *entry) *entry) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	next := fn(sh.entries[key])
	if next == nil {
		delete(sh.entries, key)
		return
	}
	sh.entries[key] = next
}

// get, set and delete are the point operations of the store. The decision
// engine never pairs get with set; it uses update so the read and write share
// one lock hold.

// get returns a copy of the entry for key.
func (s *store) get(key string) (entry, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[key]
	if !ok {
		return entry{}, false
	}
	return *e, true
}

func (s *store) set(key string, e entry) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[key] = &e
}

func (s *store) delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.entries, key)
}

// forEach visits every entry one shard at a time. fn runs with that shard
// locked and returns true to remove the entry. It reports how many entries were
// removed.
func (s *store) forEach(fn func(key string, e *entry) (remove bool)) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if fn(key, e) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// len returns the number of entries across all shards.
func (s *store) len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
