// Package retry runs an operation a bounded number of times with a delay
// between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// DelayFunc returns the wait before the next attempt, given the number of
// attempts made so far (1 after the first failure).
type DelayFunc func(attempt int) time.Duration

// Linear waits base, 2*base, 3*base, ...
func Linear(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Constant waits d between every attempt.
func Constant(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// Policy bounds the attempts of an operation.
type Policy struct {
	Attempts int
	Delay    DelayFunc
}

// ErrNoAttempts is returned when a policy allows zero attempts.
var ErrNoAttempts = errors.New("retry: no attempts allowed")

// Do calls fn until it succeeds or the policy's attempts are used up, and
// returns the last error. It does not wait after the final attempt. A
// cancelled context stops the wait and returns ctx.Err() joined with the last
// failure.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.Attempts < 1 {
		return zero, ErrNoAttempts
	}

	var lastErr error
	for i := 0; i < p.Attempts; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if i == p.Attempts-1 || p.Delay == nil {
			continue
		}
		d := p.Delay(i + 1)
		if d <= 0 {
			continue
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return zero, lastErr
}
