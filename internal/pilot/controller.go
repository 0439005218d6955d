// File: internal/pilot/controller.go
package pilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/artifact"
	"github.com/minsu-cho/declarepass/internal/form"
)

// Options tune one submission attempt.
type Options struct {
	BaseURL       string
	StepTimeout   time.Duration
	SubmitTimeout time.Duration
	StepRetries   int
	Retry         RetryPolicy
}

// Controller sequences one submission attempt: load the registry, fill each
// step, run the validation/repair cycle, verify every transition, and on the
// final step hand over to the extractor. It owns the page handle for the
// attempt's lifetime; everything runs sequentially because the portal's
// widgets are globally stateful.
type Controller struct {
	page      Page
	registry  *form.Registry
	dropdown  *DropdownEngine
	verifier  *Verifier
	validator *Validator
	extractor *Extractor
	recovery  *Recovery
	logger    *zap.Logger
	opts      Options

	// filled maps control locators back to the registry key and row that
	// filled them, for idempotent re-application during repair.
	filled map[string]FillRef
}

// NewController wires a controller around one page handle and an artifact store.
func NewController(page Page, store *artifact.Store, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("controller")
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 30 * time.Second
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 60 * time.Second
	}
	if opts.StepRetries < 0 {
		opts.StepRetries = 0
	}
	opts.Retry = opts.Retry.normalized()

	registry := form.NewRegistry()
	return &Controller{
		page:      page,
		registry:  registry,
		dropdown:  NewDropdownEngine(page, opts.Retry, logger),
		verifier:  NewVerifier(page, opts.StepTimeout, logger),
		validator: NewValidator(page, registry, logger),
		extractor: NewExtractor(page, store, opts.SubmitTimeout, logger),
		recovery:  NewRecovery(page, store, logger),
		logger:    logger,
		opts:      opts,
		filled:    make(map[string]FillRef),
	}
}

// Run drives the full pipeline for one validated request and returns the
// confirmation artifact. The request must already satisfy the completeness
// invariant; the live rendered state is re-checked by the validation loop.
func (c *Controller) Run(ctx context.Context, req *form.FormSubmissionRequest) (*artifact.ConfirmationArtifact, error) {
	c.logger.Info("Starting declaration attempt.", zap.String("url", c.opts.BaseURL))

	if err := c.page.Navigate(ctx, c.opts.BaseURL); err != nil {
		return nil, fmt.Errorf("navigating to portal: %w", err)
	}

	steps := portalSteps
	if verified, err := c.verifier.Verify(ctx, StepDef{}, steps[0]); err != nil {
		return nil, err
	} else if !verified {
		return nil, &StepNotVerifiedError{StepName: steps[0].Name, Attempts: 1}
	}

	for i, step := range steps {
		c.logger.Info("Filling step.", zap.String("step", step.Name))

		if err := c.fillStep(ctx, step, req); err != nil {
			return nil, err
		}
		if err := c.validationCycle(ctx, step, req); err != nil {
			return nil, err
		}

		if i == len(steps)-1 {
			return c.submit(ctx, step)
		}
		if err := c.advance(ctx, step, steps[i+1], req); err != nil {
			return nil, err
		}
	}

	// The loop always returns from the final step.
	return nil, fmt.Errorf("step sequence exhausted without a submit step")
}

// fillStep applies the step's fixed fields, then its repeating rows.
func (c *Controller) fillStep(ctx context.Context, step StepDef, req *form.FormSubmissionRequest) error {
	for _, key := range step.Fields {
		if err := c.fillField(ctx, key, 0, req); err != nil {
			return err
		}
	}

	rows := c.rowCount(step, req)
	for row := 0; row < rows; row++ {
		if row > 0 && step.AddRowButton != "" {
			if err := c.opts.Retry.Do(ctx, func(ctx context.Context, _ int) error {
				return c.page.Click(ctx, step.AddRowButton)
			}); err != nil {
				return fmt.Errorf("adding %s row %d: %w", step.Rows, row, err)
			}
			if err := sleep(ctx, 200*time.Millisecond); err != nil {
				return err
			}
		}
		for _, key := range step.RowFields {
			if err := c.fillField(ctx, key, row, req); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Controller) rowCount(step StepDef, req *form.FormSubmissionRequest) int {
	switch step.Rows {
	case RowsFamily:
		return len(req.FamilyMembers)
	case RowsGoods:
		return len(req.Goods)
	}
	return 0
}

// fillField resolves one key and applies it through the interaction matching
// its kind. Idempotent: re-applying the same resolved value is safe, which is
// what the repair pass relies on.
func (c *Controller) fillField(ctx context.Context, key string, row int, req *form.FormSubmissionRequest) error {
	resolved, err := c.registry.ResolveRow(key, req, row)
	if err != nil {
		// Unknown keys are programmer errors and fatal; resolver failures on a
		// validated request likewise indicate a registry/request mismatch.
		return err
	}
	c.filled[resolved.Locator] = FillRef{Key: key, Row: row}

	switch resolved.Kind {
	case form.KindText:
		return c.opts.Retry.Do(ctx, func(ctx context.Context, _ int) error {
			return c.page.SetValue(ctx, resolved.Locator, resolved.Value)
		})

	case form.KindSelect:
		return c.dropdown.Select(ctx, resolved)

	case form.KindRadioGroup:
		selector := fmt.Sprintf(`%s[value=%q]`, resolved.Locator, resolved.Value)
		return c.opts.Retry.Do(ctx, func(ctx context.Context, _ int) error {
			return c.page.Click(ctx, selector)
		})

	case form.KindCheckbox:
		if resolved.Value != "Y" {
			return nil
		}
		return c.opts.Retry.Do(ctx, func(ctx context.Context, _ int) error {
			return c.page.Click(ctx, resolved.Locator)
		})
	}

	return fmt.Errorf("field %q has unsupported kind %q", key, resolved.Kind)
}

// validationCycle runs detection, at most one repair pass, and one re-detection.
// Unresolved issues are logged and tolerated here; submission proceeds
// best-effort and the portal's own rejection re-surfaces them.
func (c *Controller) validationCycle(ctx context.Context, step StepDef, req *form.FormSubmissionRequest) error {
	issues, err := c.validator.Detect(ctx)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		return nil
	}

	c.logger.Debug("Validation issues detected.",
		zap.String("step", step.Name), zap.Int("count", len(issues)))

	fill := func(ctx context.Context, key string, row int) error {
		return c.fillField(ctx, key, row, req)
	}
	c.validator.Repair(ctx, issues, c.filled, fill)

	remaining, err := c.validator.Detect(ctx)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		c.logger.Warn("Validation issues unresolved after repair; proceeding best-effort.",
			zap.String("step", step.Name), zap.Int("count", len(remaining)))
	}
	return nil
}

// advance clicks the step's next control and verifies the transition from the
// rendered markers, retrying a bounded number of times with a repair cycle
// between attempts.
func (c *Controller) advance(ctx context.Context, from, to StepDef, req *form.FormSubmissionRequest) error {
	attempts := c.opts.StepRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.page.Click(ctx, from.NextButton); err != nil {
			c.logger.Debug("Next-step control click failed.",
				zap.String("step", from.Name), zap.Error(err))
		}

		verified, err := c.verifier.Verify(ctx, from, to)
		if err != nil {
			return err
		}
		if verified {
			return nil
		}

		if attempt < attempts {
			// The transition was likely rejected over field state; repair and retry.
			if err := c.validationCycle(ctx, from, req); err != nil {
				return err
			}
		}
	}
	return &StepNotVerifiedError{StepName: to.Name, Attempts: attempts}
}

// submit triggers the final submission and drives extraction. Extraction
// failures trigger diagnostic recovery before surfacing.
func (c *Controller) submit(ctx context.Context, step StepDef) (*artifact.ConfirmationArtifact, error) {
	if err := c.opts.Retry.Do(ctx, func(ctx context.Context, _ int) error {
		return c.page.Click(ctx, step.NextButton)
	}); err != nil {
		return nil, fmt.Errorf("clicking submit control: %w", err)
	}

	outcome, err := c.extractor.AwaitOutcome(ctx)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case OutcomeValidationError:
		issues, detectErr := c.validator.Detect(ctx)
		if detectErr != nil {
			issues = nil
		}
		return nil, &ValidationUnresolvedError{StepName: step.Name, Issues: issues}

	case OutcomeAmbiguous:
		return nil, fmt.Errorf("submission outcome ambiguous: %w", ErrAwaitTimeout)
	}

	art, err := c.extractor.Extract(ctx)
	if err != nil {
		var extractErr *ExtractionError
		if errors.As(err, &extractErr) {
			c.recovery.Capture(ctx)
		}
		return nil, err
	}

	c.logger.Info("Declaration confirmed.",
		zap.String("registration_number", art.RegistrationNumber),
		zap.String("capture_method", string(art.CaptureMethod)))
	return art, nil
}
