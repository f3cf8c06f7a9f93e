// Package retry provides a bounded retry loop with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retry loop. OnAttempt, when set, is invoked after each
// failed attempt with the attempt number and the error.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	OnAttempt      func(attempt int, err error)
}

// Do runs op up to p.MaxAttempts times, sleeping with doubling backoff
// between attempts. The final error is returned wrapped with the attempt
// count. Context cancellation aborts the wait immediately.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var err error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		var result T
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}

		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff(p, attempt)):
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", p.MaxAttempts, err)
}

func backoff(p Policy, attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}
