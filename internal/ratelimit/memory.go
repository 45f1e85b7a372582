package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// MemoryLimiter is an in-memory admission controller. Each key carries a
// pressure level that decays linearly at MaxRequests per Window; decay is
// computed lazily on access. A background sweeper evicts entries that have
// fully drained and have been idle for at least one window.
type MemoryLimiter struct {
	name   string
	policy Policy
	clock  Clock
	store  *store

	sweeper   *sweeper
	closeOnce sync.Once
}

// Option configures a MemoryLimiter.
type Option func(*options)

type options struct {
	name          string
	clock         Clock
	sweepInterval time.Duration
	shards        int
}

// WithName labels the limiter in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock replaces the system clock. Intended for tests.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSweepInterval sets how often stale entries are evicted. It is independent
// of the policy window.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithShards sets the number of store shards, rounded up to a power of two.
func WithShards(n int) Option {
	return func(o *options) { o.shards = n }
}

// NewMemoryLimiter validates the policy and returns a limiter with its sweeper
// already running. An invalid policy is a configuration error; the caller is
// expected to abort startup.
func NewMemoryLimiter(policy Policy, opts ...Option) (*MemoryLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	o := options{
		name:          "default",
		clock:         systemClock{},
		sweepInterval: defaultSweepInterval,
		shards:        defaultShards,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", o.sweepInterval)
	}

	m := &MemoryLimiter{
		name:   o.name,
		policy: policy,
		clock:  o.clock,
		store:  newStore(o.shards),
	}
	m.sweeper = newSweeper(m, o.sweepInterval)
	m.sweeper.start()
	return m, nil
}

// Allow checks whether a request from the given key should be admitted. The
// read of the prior entry and the write of the updated one happen under the
// key's shard lock, so concurrent checks for the same key never lose updates.
func (m *MemoryLimiter) Allow(key string) Decision {
	var d Decision
	m.store.update(key, func(e *entry) *entry {
		now := m.clock.Now()
		if e == nil {
			e = &entry{lastUpdate: now}
		}
		var next float64
		d, next = m.decide(e.pressure, e.lastUpdate, now)
		e.pressure = next
		e.lastUpdate = now
		return e
	})
	return d
}

// decide applies the admission rule and returns the decision together with the
// pressure to persist. A denied request persists only the decayed pressure.
func (m *MemoryLimiter) decide(stored float64, lastUpdate, now time.Time) (Decision, float64) {
	limit := float64(m.policy.MaxRequests)
	effective := decay(stored, lastUpdate, now, m.policy)
	candidate := effective + 1

	if candidate > limit+tolerance {
		retryAfter := drainTime(candidate-limit, m.policy)
		if retryAfter < time.Millisecond {
			retryAfter = time.Millisecond
		}
		return Decision{
			Allowed:    false,
			Limit:      m.policy.MaxRequests,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetAt:    now.Add(drainTime(effective, m.policy)),
		}, effective
	}

	remaining := int(math.Floor(limit - candidate + tolerance))
	if remaining < 0 {
		remaining = 0
	}
	drained := drainTime(candidate, m.policy)
	return Decision{
		Allowed:    true,
		Limit:      m.policy.MaxRequests,
		Remaining:  remaining,
		RetryAfter: drained,
		ResetAt:    now.Add(drained),
	}, candidate
}

// Policy returns the enforced policy.
func (m *MemoryLimiter) Policy() Policy {
	return m.policy
}

// Name returns the limiter label.
func (m *MemoryLimiter) Name() string {
	return m.name
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	return m.store.len()
}

// Close stops the background sweeper. It is safe to call more than once and
// the limiter keeps answering Allow afterwards, without eviction.
func (m *MemoryLimiter) Close() {
	m.closeOnce.Do(m.sweeper.stop)
}

// sweep evicts entries whose pressure has fully decayed and which have not been
// touched for at least one window.
func (m *MemoryLimiter) sweep() int {
	now := m.clock.Now()
	return m.store.forEach(func(_ string, e *entry) bool {
		if decay(e.pressure, e.lastUpdate, now, m.policy) > tolerance {
			return false
		}
		return now.Sub(e.lastUpdate) >= m.policy.Window
	})
}
