package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAdmitsUpToLimitImmediately(t *testing.T) {
	l := NewSlidingWindowLimiter(3, time.Second)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterBlocksAtCapacity(t *testing.T) {
	window := 100 * time.Millisecond
	l := NewSlidingWindowLimiter(2, window)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	waited := time.Since(start)

	// The third permit waits for the oldest timestamp to exit the window.
	assert.GreaterOrEqual(t, waited, windowSlack)
	assert.Less(t, waited, window+50*time.Millisecond)
}

func TestLimiterHonorsContextCancellation(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterSerializesWaiters(t *testing.T) {
	window := 50 * time.Millisecond
	l := NewSlidingWindowLimiter(1, window)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))

	done := make(chan time.Time, 2)
	for i := 0; i < 2; i++ {
		go func() {
			if err := l.Acquire(ctx); err == nil {
				done <- time.Now()
			}
		}()
	}

	first := <-done
	second := <-done
	// Waiters are released one per window pass, never together.
	gap := second.Sub(first)
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, window/2)
}
