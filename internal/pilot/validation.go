// File: internal/pilot/validation.go
package pilot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/form"
)

// IssueReason classifies a validation finding.
type IssueReason string

const (
	ReasonEmptyRequired IssueReason = "empty_required"
	ReasonNoSelection   IssueReason = "no_selection"
	ReasonRenderedError IssueReason = "rendered_error"
)

// ValidationIssue is one finding from the detection pass. Ephemeral: produced
// per fill attempt, never persisted.
type ValidationIssue struct {
	FieldRef string
	Reason   IssueReason
	Hint     string
}

// FillRef ties a rendered control back to the registry key (and row) that
// filled it, so a repair can re-apply the exact same fill path.
type FillRef struct {
	Key string
	Row int
}

// FillFunc re-applies a single field through the normal fill path. It must be
// idempotent.
type FillFunc func(ctx context.Context, key string, row int) error

// Validator runs the detection and repair passes over the live rendered state.
type Validator struct {
	page     Page
	registry *form.Registry
	logger   *zap.Logger
}

// NewValidator creates a validator bound to one page handle.
func NewValidator(page Page, registry *form.Registry, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{page: page, registry: registry, logger: logger.Named("validator")}
}

// Detect scans the rendered state for: controls the portal itself flagged
// invalid, visible non-empty error text, required controls that are visible,
// interactive and empty, and radio groups with no member checked.
func (v *Validator) Detect(ctx context.Context) ([]ValidationIssue, error) {
	states, err := v.page.CollectFieldStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting field states: %w", err)
	}

	var issues []ValidationIssue
	radioGroups := map[string]*radioGroupState{}

	for _, s := range states {
		if !s.Visible {
			continue
		}

		if s.Kind == "radio" {
			g := radioGroups[s.Name]
			if g == nil {
				g = &radioGroupState{}
				radioGroups[s.Name] = g
			}
			g.interactive = g.interactive || s.Interactive
			g.checked = g.checked || s.Checked
			continue
		}

		if s.Invalid || strings.TrimSpace(s.ErrorText) != "" {
			issues = append(issues, ValidationIssue{
				FieldRef: s.Selector,
				Reason:   ReasonRenderedError,
				Hint:     strings.TrimSpace(s.ErrorText),
			})
			continue
		}
		if s.Required && s.Interactive && s.Empty {
			issues = append(issues, ValidationIssue{FieldRef: s.Selector, Reason: ReasonEmptyRequired})
		}
	}

	for name, g := range radioGroups {
		if g.interactive && !g.checked {
			issues = append(issues, ValidationIssue{FieldRef: name, Reason: ReasonNoSelection})
		}
	}

	return issues, nil
}

type radioGroupState struct {
	interactive bool
	checked     bool
}

// Repair attempts a classified fix for each issue:
//   - a radio group with a known default policy gets the default selected;
//   - an empty required control whose selector maps back to a registry key is
//     re-applied through the same fill path used initially;
//   - anything unresolvable is left as-is and re-surfaced.
//
// It runs at most once per validation cycle; the caller bounds the cycle count.
func (v *Validator) Repair(ctx context.Context, issues []ValidationIssue, filled map[string]FillRef, fill FillFunc) []ValidationIssue {
	var remaining []ValidationIssue

	for _, issue := range issues {
		switch issue.Reason {
		case ReasonNoSelection:
			defaultValue, ok := radioDefaults[issue.FieldRef]
			if !ok {
				remaining = append(remaining, issue)
				continue
			}
			selector := fmt.Sprintf(`input[name=%q][value=%q]`, issue.FieldRef, defaultValue)
			if err := v.page.Click(ctx, selector); err != nil {
				v.logger.Debug("Radio default repair failed.",
					zap.String("group", issue.FieldRef), zap.Error(err))
				remaining = append(remaining, issue)
			}

		case ReasonEmptyRequired:
			ref, ok := filled[issue.FieldRef]
			if !ok || !v.registry.Has(ref.Key) {
				remaining = append(remaining, issue)
				continue
			}
			if err := fill(ctx, ref.Key, ref.Row); err != nil {
				v.logger.Debug("Field re-apply repair failed.",
					zap.String("key", ref.Key), zap.Error(err))
				remaining = append(remaining, issue)
			}

		default:
			// Rendered errors carry the portal's own message; nothing to fix
			// blindly, re-surface for the caller.
			remaining = append(remaining, issue)
		}
	}

	return remaining
}
