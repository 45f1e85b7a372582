package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache keeps entries in a map guarded by a mutex. When full, the entry
// closest to expiry is evicted to make room. A janitor goroutine removes
// expired entries on the cleanup interval.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	maxSize int
	now     func() time.Time

	done      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates a cache holding at most maxSize entries (unbounded
// when maxSize <= 0). A non-positive cleanupInterval disables the janitor;
// expired entries are then only dropped on access.
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:    make(map[string]memoryItem),
		maxSize:  maxSize,
		now:      time.Now,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.finished)
	}
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictLocked()
	}
	c.items[key] = memoryItem{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet removed.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the janitor. Safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.finished
	})
	return nil
}

// evictLocked drops expired entries, or failing that the one expiring soonest.
func (c *MemoryCache) evictLocked() {
	if c.removeExpiredLocked() > 0 {
		return
	}

	var victim string
	var soonest time.Time
	for k, item := range c.items {
		if victim == "" || item.expiresAt.Before(soonest) {
			victim, soonest = k, item.expiresAt
		}
	}
	delete(c.items, victim)
}

func (c *MemoryCache) removeExpiredLocked() int {
	now := c.now()
	removed := 0
	for k, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer close(c.finished)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			removed := c.removeExpiredLocked()
			c.mu.Unlock()
			if removed > 0 {
				slog.Debug("Cache entries expired", "removed", removed)
			}
		}
	}
}
