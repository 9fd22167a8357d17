// Package retry provides the bounded-retry policy Sage wraps around the
// model backend call. Timing and attempt counting live here; the wrapped
// operation is opaque.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Event describes one failed attempt, emitted to the observability sink.
type Event struct {
	Operation string
	Attempt   int
	Err       error
}

// Sink receives one event per failed attempt. Implementations must be
// non-blocking; a sink that panics or misbehaves never fails the operation.
type Sink interface {
	AttemptFailed(Event)
}

// Policy controls attempt counting and backoff timing.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff returns the wait before the attempt following the given one
	// (attempts are counted from 1).
	Backoff func(attempt int) time.Duration

	// Sleep waits for the backoff duration. Overridable for deterministic
	// tests; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the production policy: 3 attempts with exponential
// backoff of 2^attempt seconds (2s after attempt 1, 4s after attempt 2).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff,
	}
}

// ExponentialBackoff waits 2^attempt seconds between attempts.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// ExhaustedError reports that every attempt failed. It carries the last
// underlying error.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

// Unwrap exposes the last underlying error.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do runs fn under the policy, returning the first successful result. When
// all attempts fail it returns an *ExhaustedError wrapping the last error.
// Each failure is reported to the sink before the next attempt.
func Do[T any](ctx context.Context, p Policy, sink Sink, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		emit(sink, Event{Operation: operation, Attempt: attempt, Err: err})

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, backoff(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Operation: operation, Attempts: maxAttempts, Last: lastErr}
}

// emit reports a failed attempt, shielding the caller from sink faults.
func emit(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	sink.AttemptFailed(ev)
}

// sleepContext waits for d or until the context is cancelled.
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
