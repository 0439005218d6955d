// File: internal/pilot/verifier.go
package pilot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Verifier confirms that a step transition actually happened. Invoking the
// "next" control is never trusted on its own: a disabled or ignored control
// must not be mistaken for a transition. Verification inspects the rendered
// page for the destination's markers and the absence of the origin's.
type Verifier struct {
	page     Page
	logger   *zap.Logger
	timeout  time.Duration
	interval time.Duration
}

// NewVerifier creates a verifier bound to one page handle.
func NewVerifier(page Page, timeout time.Duration, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Verifier{
		page:     page,
		logger:   logger.Named("verifier"),
		timeout:  timeout,
		interval: 200 * time.Millisecond,
	}
}

// Verify polls until the destination step's markers are all visible and the
// origin's are all gone, or the timeout elapses. It is read-only and
// idempotent: verifying an already-correct state succeeds immediately, twice
// in a row, without side effects.
func (v *Verifier) Verify(ctx context.Context, from, to StepDef) (bool, error) {
	err := Await(ctx, func(ctx context.Context) (bool, error) {
		return v.markersHold(ctx, from, to)
	}, v.timeout, v.interval)

	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	v.logger.Debug("Step transition not verified.",
		zap.String("from", from.Name), zap.String("to", to.Name))
	return false, nil
}

func (v *Verifier) markersHold(ctx context.Context, from, to StepDef) (bool, error) {
	for _, marker := range to.EnterMarkers {
		visible, err := v.page.IsVisible(ctx, marker)
		if err != nil {
			return false, nil // transient probe failure; keep polling
		}
		if !visible {
			return false, nil
		}
	}
	for _, marker := range from.EnterMarkers {
		// Markers shared between the two steps cannot discriminate; skip them.
		if contains(to.EnterMarkers, marker) {
			continue
		}
		visible, err := v.page.IsVisible(ctx, marker)
		if err != nil {
			return false, nil
		}
		if visible {
			return false, nil
		}
	}
	return true, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
