package util

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy is an explicit retry schedule: capped exponential backoff with
// optional jitter. Callers decide which errors are worth another attempt via
// the retryable predicate; a nil predicate retries everything.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// Backoff returns the delay before the given attempt (attempt is 1-based;
// attempt 1 has no delay).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter && d > 0 {
		// full jitter: [d/2, d)
		d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	}
	return d
}

// Retry runs op up to p.MaxAttempts times, sleeping Backoff between attempts.
// The clock is injectable so tests never sleep. The last error is returned
// once attempts are exhausted or op reports a non-retryable error.
func Retry(ctx context.Context, clock Clock, p RetryPolicy, retryable func(error) bool, op func(ctx context.Context) error) error {
	if clock == nil {
		clock = RealClock{}
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if delay := p.Backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(delay):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
