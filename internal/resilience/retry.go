package resilience

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig tunes [Retry]'s bounded exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; each subsequent
	// attempt doubles it. Default: 100ms.
	BaseDelay time.Duration

	// Name labels log messages.
	Name string
}

// Retry calls fn up to cfg.MaxAttempts times, doubling the delay between
// attempts starting at cfg.BaseDelay, stopping early on success, on ctx
// cancellation, or when shouldRetry returns false for the latest error.
// shouldRetry may be nil, in which case every error is considered transient.
func Retry(ctx context.Context, cfg RetryConfig, shouldRetry func(error) bool, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		slog.Warn("retrying after transient failure",
			"name", cfg.Name,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
			"err", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}
