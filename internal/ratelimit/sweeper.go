package ratelimit

import (
	"log/slog"
	"time"
)

// sweeper periodically evicts stale entries from a limiter. Passes run on their
// own ticker regardless of request traffic.
type sweeper struct {
	limiter  *MemoryLimiter
	interval time.Duration
	done     chan struct{}
	finished chan struct{}
}

func newSweeper(m *MemoryLimiter, interval time.Duration) *sweeper {
	return &sweeper{
		limiter:  m,
		interval: interval,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (s *sweeper) start() {
	go s.run()
}

func (s *sweeper) run() {
	defer close(s.finished)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if evicted := s.limiter.sweep(); evicted > 0 {
				slog.Debug("Rate limit entries evicted",
					"limiter", s.limiter.name,
					"evicted", evicted,
				)
			}
		}
	}
}

// stop prevents further passes and waits for the loop to exit. A pass already
// in progress is allowed to finish.
func (s *sweeper) stop() {
	close(s.done)
	<-s.finished
}
