// Package ratelimit provides request admission control for HTTP endpoints. Each
// caller identity accumulates pressure that decays linearly over a policy
// window; a request is admitted while the decayed pressure plus its own cost
// stays within the policy capacity. Limiter state lives in process memory only.
package ratelimit

import (
	"math"
	"time"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow evaluates a request identified by key and records its cost when
	// admitted. A denial is reported through Decision.Allowed, never as an error.
	Allow(key string) Decision

	// Policy returns the window and capacity the limiter enforces.
	Policy() Policy

	// Len returns the number of identities currently tracked.
	Len() int

	// Close stops background goroutines and releases resources.
	Close()
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed    bool          // Whether the request may proceed
	Limit      int           // Policy capacity
	Remaining  int           // Whole requests still admissible right now
	RetryAfter time.Duration // Denied: minimum wait before a retry can succeed. Allowed: time until fully drained
	ResetAt    time.Time     // When the identity's pressure reaches zero
}

// RetryAfterMillis returns RetryAfter as whole milliseconds.
func (d Decision) RetryAfterMillis() int64 {
	return d.RetryAfter.Milliseconds()
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, with a
// minimum of one second for denied decisions. This is the value used for the
// Retry-After response header.
func (d Decision) RetryAfterSeconds() int64 {
	secs := int64(math.Ceil(d.RetryAfter.Seconds()))
	if !d.Allowed && secs < 1 {
		return 1
	}
	return secs
}

// Clock supplies the current time to the decision engine and sweeper.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
