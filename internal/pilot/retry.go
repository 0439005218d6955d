// File: internal/pilot/retry.go
package pilot

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds a retry loop. Every loop in the pipeline uses one; nothing
// retries indefinitely.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the portal's observed settle behavior.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 500 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}
	return p
}

// Do runs fn up to MaxAttempts times with a fixed inter-attempt delay, letting
// a prior failed attempt settle before the next. The last error is returned on
// exhaustion.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(ctx, attempt); lastErr == nil {
			return nil
		}
		if attempt < p.MaxAttempts {
			if err := sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// Strategy is one way of accomplishing an interaction. Strategies carry a name
// so a failure can say which approaches were tried.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) error
}

// TryStrategies attempts each strategy in order until one succeeds. All
// failing returns an error naming the last strategy's failure.
func TryStrategies(ctx context.Context, strategies []Strategy) error {
	var lastErr error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = s.Run(ctx); lastErr == nil {
			return nil
		}
	}
	if lastErr == nil {
		return fmt.Errorf("no strategies provided")
	}
	return fmt.Errorf("all %d strategies failed: %w", len(strategies), lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
