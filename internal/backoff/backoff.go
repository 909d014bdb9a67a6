// Package backoff provides the retry policy shared by the invoker and the
// reconciler. It is a thin, configurable layer over retry-go.
package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// Timer supplies the channel a retry waits on between attempts. control.Control
// provides one that honours pause and cancel.
type Timer interface {
	After(time.Duration) <-chan time.Time
}

// Policy describes how often and how long to retry.
type Policy struct {
	// MaxAttempts bounds total attempts, including the first. Zero means no bound;
	// fn must then end the loop itself with Stop.
	MaxAttempts int

	// Backoff returns the wait after the given failed attempt (1-based).
	// Nil means retry immediately.
	Backoff func(attempt int, err error) time.Duration

	// Retriable reports whether err is worth another attempt. Nil retries everything.
	Retriable func(err error) bool
}

type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop marks err as final: Do returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// Do calls fn until it succeeds, returns a Stop error, fails a Retriable check,
// or the attempts run out. The last error is returned; ctx cancellation returns
// ctx.Err().
func (p Policy) Do(ctx context.Context, timer Timer, fn func(attempt int) error) error {
	attempt := 0
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(max(p.MaxAttempts, 0))),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			if p.Backoff == nil {
				return 0
			}
			return p.Backoff(int(n)+1, err)
		}),
		retry.RetryIf(func(err error) bool {
			var stop *stopError
			if errors.As(err, &stop) {
				return false
			}
			return p.Retriable == nil || p.Retriable(err)
		}),
	}
	if timer != nil {
		opts = append(opts, retry.WithTimer(timer))
	}

	err := retry.Do(func() error {
		attempt++
		return fn(attempt)
	}, opts...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var stop *stopError
	if errors.As(err, &stop) {
		return stop.err
	}
	return err
}

// Exponential doubles from base on each attempt, capped at limit.
func Exponential(base, limit time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= limit {
				return limit
			}
		}
		return min(d, limit)
	}
}

// Fixed waits d between every attempt.
func Fixed(d time.Duration) func(int, error) time.Duration {
	return func(int, error) time.Duration { return d }
}
