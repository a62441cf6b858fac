package resilience

import (
	"context"
	"time"
)

// RetryConfig tunes [Retry]'s exponential backoff schedule.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 4 (one initial try plus up to 3 retries).
	MaxAttempts int

	// Base is the delay before the first retry. Default: 250ms.
	Base time.Duration

	// Cap bounds the delay; it never grows past this. Default: 4s.
	Cap time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.Base <= 0 {
		c.Base = 250 * time.Millisecond
	}
	if c.Cap <= 0 {
		c.Cap = 4 * time.Second
	}
	return c
}

// Retry calls fn up to cfg.MaxAttempts times, waiting base·2^k between
// attempts (capped at cfg.Cap) after each failure. isRetryable decides
// whether a given error should be retried at all; when isRetryable is nil,
// every error is retried. Retry returns the last error seen, or nil on the
// first success. It stops early and returns ctx.Err() if ctx is cancelled
// while waiting between attempts.
func Retry(ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, fn func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.Base
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.Cap {
			delay = cfg.Cap
		}
	}
	return lastErr
}
