package search

import (
	"context"
	"sync"
	"time"
)

// windowSlack is added to every capacity wait so that the oldest timestamp
// has definitely left the window when the waiter re-checks.
const windowSlack = 10 * time.Millisecond

// SlidingWindowLimiter admits at most limit permits per rolling window.
//
// Acquisition is serialized: the mutex is held for the whole acquire, so
// concurrent callers queue up and exactly one waiter is released per pass,
// after the pass has recomputed the valid timestamp window. A permit is
// consumed at release time by appending the current timestamp; stale
// timestamps are discarded before capacity is checked.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter admitting limit permits per window.
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Acquire blocks until a permit is available or ctx is done.
func (l *SlidingWindowLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()
		cutoff := now.Add(-l.window)

		// Discard timestamps that have left the window.
		valid := 0
		for valid < len(l.stamps) && !l.stamps[valid].After(cutoff) {
			valid++
		}
		l.stamps = l.stamps[valid:]

		if len(l.stamps) < l.limit {
			l.stamps = append(l.stamps, now)
			return nil
		}

		// At capacity: wait until the oldest timestamp exits the window,
		// plus slack, then re-check. The mutex stays held so queued callers
		// are released one per pass.
		wait := l.stamps[0].Sub(cutoff) + windowSlack
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
