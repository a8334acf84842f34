package core

import (
	"context"
	"time"
)

// RetryPolicy retries an operation a bounded number of times, pausing
// between attempts. Only service errors are retried: a no-match outcome
// or a fatal error returns immediately.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration

	// OnRetry, when set, is called before each re-attempt.
	OnRetry func(attempt int, err error)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is exhausted. The last error is returned in that case.
func (rp RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := rp.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil || !IsServiceError(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		if rp.OnRetry != nil {
			rp.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rp.Backoff):
			// A zero backoff makes the timer fire immediately, which can
			// win the select against an already-cancelled context.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
		}
	}

	return err
}
