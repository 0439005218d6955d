// File: internal/pilot/await.go
package pilot

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrAwaitTimeout is returned when a polled condition does not hold within its
// timeout. Callers treat it as a retryable failure, never a hang.
var ErrAwaitTimeout = errors.New("condition not met before timeout")

// Condition is a predicate over live page state. Returning an error aborts the
// wait immediately; returning (false, nil) keeps polling.
type Condition func(ctx context.Context) (bool, error)

// Await polls cond every interval until it holds, the timeout elapses, or the
// context is cancelled. It is the single suspension primitive used for dropdown
// open detection, navigation verification, and download completion.
func Await(ctx context.Context, cond Condition, timeout, interval time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(waitCtx)
		if err != nil {
			// A probe error during the final stretch is indistinguishable from
			// the deadline itself; report the timeout in that case.
			if waitCtx.Err() != nil {
				break
			}
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrAwaitTimeout
		case <-ticker.C:
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrAwaitTimeout
}

// CompletionSignal is one independent way of observing that an operation
// finished, yielding its result (e.g. a downloaded file path).
type CompletionSignal func(ctx context.Context) (string, error)

// RaceCompletion starts every signal and returns the first result to arrive.
// The losers are cancelled and their results discarded. All signals failing is
// an error; the first failure is reported.
func RaceCompletion(ctx context.Context, timeout time.Duration, signals ...CompletionSignal) (string, error) {
	if len(signals) == 0 {
		return "", errors.New("no completion signals provided")
	}

	raceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	results := make(chan outcome, len(signals))

	g, sigCtx := errgroup.WithContext(raceCtx)
	for _, sig := range signals {
		sig := sig
		g.Go(func() error {
			res, err := sig(sigCtx)
			results <- outcome{result: res, err: err}
			if err == nil {
				// Winning cancels the rest via the group context.
				return errSignalWon
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var firstErr error
	for out := range results {
		if out.err == nil {
			return out.result, nil
		}
		if firstErr == nil {
			firstErr = out.err
		}
	}

	if raceCtx.Err() != nil && ctx.Err() == nil {
		return "", ErrAwaitTimeout
	}
	return "", firstErr
}

// errSignalWon is used internally to cancel losing signals through errgroup.
var errSignalWon = errors.New("completion signal won")
