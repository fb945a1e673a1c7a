// Package retry provides bounded, fixed-delay retry policies for calls to
// external providers.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy retries an operation up to MaxAttempts times, waiting Delay between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	Logger    *slog.Logger
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts run out,
// or ctx is done. The last error is returned wrapped with the operation name.
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: %w", name, errors.Join(lastErr, err))
			}
			return fmt.Errorf("%s: %w", name, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return fmt.Errorf("%s: %w", name, lastErr)
		}

		if attempt < attempts {
			logger.Warn("Retrying operation",
				"operation", name,
				"attempt", attempt,
				"max_attempts", attempts,
				"delay_ms", p.Delay.Milliseconds(),
				"error", lastErr,
			)
			if err := Sleep(ctx, p.Delay); err != nil {
				return fmt.Errorf("%s: %w", name, errors.Join(lastErr, err))
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
