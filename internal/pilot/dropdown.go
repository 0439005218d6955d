// File: internal/pilot/dropdown.go
package pilot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/form"
)

// anyOptionList matches every mounted option-list instance. It is the fallback
// scope when a field's own list selector yields nothing; the scoped selector is
// always preferred to avoid cross-talk between simultaneously mounted lists.
const anyOptionList = "ul.ui-select-options"

// DropdownEngine selects options inside the portal's custom dropdown widgets.
// The widgets render their option lists asynchronously after an open action,
// and option identity is a stable title attribute combined with visible text.
type DropdownEngine struct {
	page        Page
	logger      *zap.Logger
	policy      RetryPolicy
	openTimeout time.Duration
	settleDelay time.Duration
}

// NewDropdownEngine creates an engine bound to one page handle.
func NewDropdownEngine(page Page, policy RetryPolicy, logger *zap.Logger) *DropdownEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DropdownEngine{
		page:        page,
		logger:      logger.Named("dropdown"),
		policy:      policy.normalized(),
		openTimeout: 2 * time.Second,
		settleDelay: 150 * time.Millisecond,
	}
}

// Select opens the widget for field and commits the option matching the
// resolved value. Failures are field-level outcomes: the returned error is
// always a *DropdownOpenError, *OptionCommitError or *OptionNotFoundError
// (or a context error), never a raw page failure.
func (e *DropdownEngine) Select(ctx context.Context, field form.ResolvedField) error {
	policy := e.policy
	if field.Attempts > 0 {
		policy.MaxAttempts = field.Attempts
	}

	var notFound *OptionNotFoundError
	var commitFailed bool
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		commitFailed = false
		listSelector, openErr := e.open(ctx, field)
		if openErr != nil {
			e.logger.Debug("Dropdown open attempt failed.",
				zap.String("field", field.Key), zap.Int("attempt", attempt), zap.Error(openErr))
			return openErr
		}

		option, matchErr := e.match(ctx, field, listSelector)
		if matchErr != nil {
			// The list was open and the value is simply absent; retrying the
			// open/match cycle cannot change that.
			notFound = &OptionNotFoundError{Field: field.Key, Value: field.Value, Attempts: attempt}
			e.closeWidget(ctx)
			return nil
		}

		if commitErr := e.commit(ctx, option); commitErr != nil {
			commitFailed = true
			e.logger.Debug("Dropdown commit attempt failed.",
				zap.String("field", field.Key), zap.Int("attempt", attempt), zap.Error(commitErr))
			return commitErr
		}
		return nil
	})

	if notFound != nil {
		return notFound
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if commitFailed {
			return &OptionCommitError{Field: field.Key, Value: field.Value, Attempts: policy.MaxAttempts}
		}
		return &DropdownOpenError{Field: field.Key, Attempts: policy.MaxAttempts}
	}
	return nil
}

// open drives the widget open and waits for a visible option list. It returns
// the selector of the list instance that actually rendered.
func (e *DropdownEngine) open(ctx context.Context, field form.ResolvedField) (string, error) {
	strategies := []Strategy{
		{Name: "click-control", Run: func(ctx context.Context) error {
			return e.openAndPoll(ctx, field, func(ctx context.Context) error {
				return e.page.Click(ctx, field.Locator)
			})
		}},
		{Name: "click-widget-root", Run: func(ctx context.Context) error {
			root := widgetRootSelector(field.Locator)
			if root == "" || root == field.Locator {
				return fmt.Errorf("no distinct widget root for %q", field.Locator)
			}
			return e.openAndPoll(ctx, field, func(ctx context.Context) error {
				return e.page.Click(ctx, root)
			})
		}},
		{Name: "synthetic-pointer", Run: func(ctx context.Context) error {
			return e.openAndPoll(ctx, field, func(ctx context.Context) error {
				return e.page.DispatchPointer(ctx, field.Locator)
			})
		}},
	}

	if err := TryStrategies(ctx, strategies); err != nil {
		return "", err
	}

	// Prefer the field's own list instance; fall back to any visible list.
	if visible, _ := e.page.IsVisible(ctx, field.OptionList); visible {
		return field.OptionList, nil
	}
	return anyOptionList, nil
}

// openAndPoll runs one open action then polls briefly for a visible,
// non-hidden option list. No list appearing means the open attempt failed.
func (e *DropdownEngine) openAndPoll(ctx context.Context, field form.ResolvedField, action func(ctx context.Context) error) error {
	if err := action(ctx); err != nil {
		return err
	}
	return Await(ctx, func(ctx context.Context) (bool, error) {
		if visible, err := e.page.IsVisible(ctx, field.OptionList); err == nil && visible {
			return true, nil
		}
		visible, err := e.page.IsVisible(ctx, anyOptionList)
		if err != nil {
			return false, nil // transient probe failure; keep polling
		}
		return visible, nil
	}, e.openTimeout, 100*time.Millisecond)
}

// match finds the option for the field's value, scoped to listSelector first
// and falling back to any visible list.
func (e *DropdownEngine) match(ctx context.Context, field form.ResolvedField, listSelector string) (DropdownOption, error) {
	options, err := e.page.ListOptions(ctx, listSelector)
	if (err != nil || len(options) == 0) && listSelector != anyOptionList {
		options, err = e.page.ListOptions(ctx, anyOptionList)
	}
	if err != nil {
		return DropdownOption{}, fmt.Errorf("listing options for %q: %w", field.Key, err)
	}
	if len(options) == 0 {
		return DropdownOption{}, fmt.Errorf("no visible options for %q", field.Key)
	}

	if opt, ok := matchOption(options, field.Value); ok {
		return opt, nil
	}
	return DropdownOption{}, fmt.Errorf("value %q not among %d options", field.Value, len(options))
}

// matchOption applies the match strategies in order: exact identity attribute,
// partial identity attribute, exact-or-substring visible text, and finally the
// code-prefix fallback for "CODE - NAME" values.
func matchOption(options []DropdownOption, value string) (DropdownOption, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DropdownOption{}, false
	}

	// Exact match on the stable identity attribute.
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt.Title), value) {
			return opt, true
		}
	}

	// Partial/substring match on the attribute.
	lower := strings.ToLower(value)
	for _, opt := range options {
		title := strings.ToLower(strings.TrimSpace(opt.Title))
		if title == "" {
			continue
		}
		if strings.Contains(title, lower) || strings.Contains(lower, title) {
			return opt, true
		}
	}

	// Exact or substring match on visible text.
	for _, opt := range options {
		text := strings.ToLower(strings.TrimSpace(opt.Text))
		if text == "" {
			continue
		}
		if text == lower || strings.Contains(text, lower) {
			return opt, true
		}
	}

	// "CODE - NAME" values: match on the code prefix alone.
	if code, _, found := strings.Cut(value, " - "); found {
		code = strings.TrimSpace(code)
		for _, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt.Title), code) {
				return opt, true
			}
			if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(opt.Text)), strings.ToUpper(code)) {
				return opt, true
			}
		}
	}

	return DropdownOption{}, false
}

// commit clicks the matched option, closes the widget by clicking outside so it
// cannot interfere with the next dropdown, and lets the page settle.
func (e *DropdownEngine) commit(ctx context.Context, option DropdownOption) error {
	if err := e.page.Click(ctx, option.Selector); err != nil {
		return fmt.Errorf("clicking option %q: %w", option.Selector, err)
	}
	e.closeWidget(ctx)
	return sleep(ctx, e.settleDelay)
}

func (e *DropdownEngine) closeWidget(ctx context.Context) {
	// Best effort; an already-closed widget is fine.
	if err := e.page.Click(ctx, "body"); err != nil {
		e.logger.Debug("Click-outside close failed.", zap.Error(err))
	}
}

// widgetRootSelector derives the widget's container selector from the trigger
// locator by dropping the final descendant segment, e.g.
// "div.sel-natn .ui-select-trigger" -> "div.sel-natn".
func widgetRootSelector(locator string) string {
	idx := strings.LastIndex(strings.TrimSpace(locator), " ")
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(locator[:idx])
}
