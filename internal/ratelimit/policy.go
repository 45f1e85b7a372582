package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPolicy is returned when a limiter is constructed with a
// non-positive window or capacity.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// tolerance absorbs float drift so a request landing exactly on capacity is
// never denied by rounding.
const tolerance = 1e-9

// Policy allows MaxRequests within any Window.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// Validate reports whether the policy can be enforced.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidPolicy, p.Window)
	}
	if p.Window < time.Millisecond {
		return fmt.Errorf("%w: window must be at least 1ms, got %s", ErrInvalidPolicy, p.Window)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidPolicy, p.MaxRequests)
	}
	return nil
}

// String formats the policy as "60/1m0s".
func (p Policy) String() string {
	return fmt.Sprintf("%d/%s", p.MaxRequests, p.Window)
}

// drainRate is the capacity drained per millisecond.
func (p Policy) drainRate() float64 {
	return float64(p.MaxRequests) / millis(p.Window)
}

// decay returns the pressure still counted against capacity at now, given the
// pressure stored at lastUpdate. Pressure drains linearly at the policy rate
// and never goes below zero. A clock that moved backwards counts as no time.
func decay(stored float64, lastUpdate, now time.Time, p Policy) float64 {
	elapsed := now.Sub(lastUpdate)
	if elapsed <= 0 {
		return stored
	}
	return math.Max(0, stored-millis(elapsed)*p.drainRate())
}

// drainTime returns how long pressure takes to drain by amount, rounded up to
// whole milliseconds so callers never under-wait.
func drainTime(amount float64, p Policy) time.Duration {
	if amount <= tolerance {
		return 0
	}
	// Round to the nanosecond before taking the ceiling so float noise such as
	// 1000.0000000000001 does not add a spurious millisecond.
	ms := math.Ceil(math.Round(amount/p.drainRate()*1e6) / 1e6)
	return time.Duration(ms) * time.Millisecond
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
