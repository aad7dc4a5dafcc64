// Package retry wraps a call with a bounded number of attempts and a fixed
// delay between them. It knows nothing about what the call does.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Policy is the retry configuration shared by every creation path.
type Policy struct {
	Attempts int
	Delay    time.Duration

	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// Do runs op until it succeeds or Attempts is exhausted. The error of the
// last attempt is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		return op(ctx)
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) {
			p.OnRetry(attempt, err)
		}))
	}

	return backoff.Retry(ctx, operation, opts...)
}
