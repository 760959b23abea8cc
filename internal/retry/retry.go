// Package retry provides a generic re-attempt loop with exponential
// backoff.
package retry

import (
	"context"
	"math"
	"time"
)

// Config controls the attempt budget and delay growth. Delay before attempt
// n+1 is InitialDelay * Multiplier^(n-1). No jitter, no elapsed-time cap;
// MaxAttempts alone bounds worst-case latency.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64

	// Retryable, when set, stops the loop early for errors it rejects.
	// When nil every failure is retried until attempts run out.
	Retryable func(error) bool
}

// Observer is invoked before each backoff wait with the attempt number
// (1-based) and the error that triggered it. Diagnostics only; it cannot
// alter control flow.
type Observer func(attempt int, err error)

// Do executes op until it succeeds or the attempt budget is spent. The last
// failure is returned to the caller unchanged.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error, obs Observer) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			break
		}

		if obs != nil {
			obs(attempt, lastErr)
		}

		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
