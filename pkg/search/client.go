// Package search provides the rate-limited, retrying client the research
// loop issues queries through, plus the concrete provider implementations
// (Brave, Serper, and an offline mock).
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/seldon-labs/psychohistory/pkg/models"
)

// Provider executes a single search query. Implementations do no retrying
// or rate limiting of their own; that lives in Client.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]models.Source, error)
}

// StatusError is a non-2xx provider response. 429 and 5xx retry; other 4xx
// codes are provider misuse and fail immediately.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.Code)
}

// Rate limit applied to real providers: 5 requests per rolling second.
const (
	DefaultRateLimit  = 5
	DefaultRateWindow = time.Second
)

// maxSearchRetries caps the retry ladder: 1s, 2s, 4s, 8s, 16s.
const maxSearchRetries = 5

// Metrics is the subset of pipeline metrics the client reports into.
// A nil Metrics is valid and records nothing.
type Metrics interface {
	SearchIssued(provider string)
	SearchRetried(provider string)
}

// Client wraps a Provider with the shared sliding-window rate limiter and
// the transient-failure retry ladder. One Client (and so one limiter) is
// shared by every concurrent node pipeline of a build.
type Client struct {
	provider Provider
	limiter  *SlidingWindowLimiter
	metrics  Metrics
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter replaces the default limiter. Pass nil to disable limiting
// (the mock provider does not need one).
func WithLimiter(l *SlidingWindowLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics wires metric reporting.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// withSleep replaces the backoff sleeper. Test hook.
func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient builds a search client around a provider.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		limiter:  NewSlidingWindowLimiter(DefaultRateLimit, DefaultRateWindow),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search executes one query: acquire a permit, call the provider, and retry
// transient failures (429 or network errors) with exponential backoff.
func (c *Client) Search(ctx context.Context, query string) ([]models.Source, error) {
	var lastErr error
	for attempt := 0; attempt <= maxSearchRetries; attempt++ {
		if attempt > 0 {
			delay := time.Second << (attempt - 1)
			slog.Debug("Retrying search after transient failure",
				"provider", c.provider.Name(), "attempt", attempt, "delay", delay, "error", lastErr)
			if c.metrics != nil {
				c.metrics.SearchRetried(c.provider.Name())
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		if c.metrics != nil {
			c.metrics.SearchIssued(c.provider.Name())
		}

		sources, err := c.provider.Search(ctx, query)
		if err == nil {
			return sources, nil
		}
		if !isTransient(err) {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search %q failed after %d retries: %w", query, maxSearchRetries, lastErr)
}

// isTransient reports whether an error is worth retrying: rate limiting,
// server errors, and network-level failures. Other 4xx codes are not.
func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Anything else from the HTTP stack is a network-level failure.
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
