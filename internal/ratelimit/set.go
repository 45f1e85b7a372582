package ratelimit

import (
	"facilitywatch/internal/models"
	"fmt"
)

// Set holds one isolated limiter per named policy. Policies never share state.
type Set struct {
	limiters map[string]*MemoryLimiter
	names    []string
}

// NewSet builds a limiter for every policy in cfg. Any invalid policy fails the
// whole set and limiters built so far are closed.
func NewSet(cfg models.RateLimitConfig, opts ...Option) (*Set, error) {
	s := &Set{limiters: make(map[string]*MemoryLimiter, len(cfg.Policies))}

	base := []Option{WithSweepInterval(cfg.SweepInterval)}
	if cfg.Shards > 0 {
		base = append(base, WithShards(cfg.Shards))
	}

	for _, name := range cfg.PolicyNames() {
		p := cfg.Policies[name]
		policyOpts := append(append([]Option{}, base...), opts...)
		policyOpts = append(policyOpts, WithName(name))

		l, err := NewMemoryLimiter(Policy{Window: p.Window, MaxRequests: p.MaxRequests}, policyOpts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("rate limit policy %s: %w", name, err)
		}
		s.limiters[name] = l
		s.names = append(s.names, name)
	}

	return s, nil
}

// Get returns the limiter for the named policy.
func (s *Set) Get(name string) (*MemoryLimiter, bool) {
	l, ok := s.limiters[name]
	return l, ok
}

// Names returns the policy names in sorted order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Close stops every limiter's sweeper.
func (s *Set) Close() {
	for _, l := range s.limiters {
		l.Close()
	}
}
