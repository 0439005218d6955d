// File: internal/browser/page.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/pilot"
)

// Session implements pilot.Page over CDP. Interactions that the portal's
// scripts observe (value changes, pointer sequences) are performed in-page
// via evaluated JS so the synthetic events carry bubbles:true and reach the
// framework's delegated listeners.
var _ pilot.Page = (*Session)(nil)

// Navigate loads a URL and waits for the document to become interactive. It
// uses the configured navigation timeout rather than the per-op default.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.Portal.NavigationTimeout
	if timeout <= 0 {
		timeout = opTimeout
	}
	err := s.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %q failed: %w", url, err)
	}
	s.logger.Debug("Navigation complete.", zap.String("url", url))
	return nil
}

// Click dispatches a trusted click on the first visible match.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.runActions(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// SetValue writes value into the control and fires the input/change events
// the portal's validation scripts listen for.
func (s *Session) SetValue(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`
		(function(selector, value) {
			const el = document.querySelector(selector);
			if (!el) return false;
			el.focus();
			el.value = value;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			el.blur();
			return true;
		})(%s, %s);
	`, jsonEncode(selector), jsonEncode(value))

	var ok bool
	if err := s.evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("set value on %q failed: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("set value on %q failed: element not found", selector)
	}
	return nil
}

// DispatchPointer force-focuses the element and replays a full synthetic
// pointer sequence at its center. Used when ordinary clicks are swallowed.
func (s *Session) DispatchPointer(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`
		(function(selector) {
			const el = document.querySelector(selector);
			if (!el) return false;
			const rect = el.getBoundingClientRect();
			const x = rect.left + rect.width / 2;
			const y = rect.top + rect.height / 2;
			el.focus();
			const opts = { bubbles: true, cancelable: true, clientX: x, clientY: y, pointerId: 1 };
			el.dispatchEvent(new PointerEvent('pointerdown', opts));
			el.dispatchEvent(new PointerEvent('pointerup', opts));
			el.dispatchEvent(new MouseEvent('click', opts));
			return true;
		})(%s);
	`, jsonEncode(selector))

	var ok bool
	if err := s.evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("pointer dispatch on %q failed: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("pointer dispatch on %q failed: element not found", selector)
	}
	return nil
}

// IsVisible reports whether the first match exists and is rendered with a
// non-zero box. Absence is a false result, not an error.
func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`
		(function(selector) {
			const el = document.querySelector(selector);
			if (!el) return false;
			const style = window.getComputedStyle(el);
			if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
			const rect = el.getBoundingClientRect();
			return rect.width > 0 && rect.height > 0;
		})(%s);
	`, jsonEncode(selector))

	var visible bool
	if err := s.evaluate(ctx, script, &visible); err != nil {
		return false, fmt.Errorf("visibility check for %q failed: %w", selector, err)
	}
	return visible, nil
}

// Text returns the trimmed inner text of the first match.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	script := fmt.Sprintf(`
		(function(selector) {
			const el = document.querySelector(selector);
			return el === null ? null : el.innerText.trim();
		})(%s);
	`, jsonEncode(selector))

	var raw json.RawMessage
	if err := s.evaluate(ctx, script, &raw); err != nil {
		return "", fmt.Errorf("text read for %q failed: %w", selector, err)
	}
	if string(raw) == "null" {
		return "", fmt.Errorf("text read for %q failed: element not found", selector)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("text read for %q returned unexpected payload: %w", selector, err)
	}
	return text, nil
}

// VisibleText returns the page's visible body text.
func (s *Session) VisibleText(ctx context.Context) (string, error) {
	var text string
	if err := s.evaluate(ctx, `document.body ? document.body.innerText : ''`, &text); err != nil {
		return "", fmt.Errorf("visible text read failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// ListOptions enumerates the visible entries of an open option list. Each
// entry is tagged in-page with a stable attribute so the returned selectors
// survive list re-renders between enumeration and the commit click.
func (s *Session) ListOptions(ctx context.Context, listSelector string) ([]pilot.DropdownOption, error) {
	script := fmt.Sprintf(`
		(function(listSelector) {
			const lists = Array.from(document.querySelectorAll(listSelector));
			const visible = lists.find(l => {
				const r = l.getBoundingClientRect();
				return r.width > 0 && r.height > 0 && window.getComputedStyle(l).display !== 'none';
			});
			if (!visible) return [];
			window.__dpOptSeq = window.__dpOptSeq || 0;
			const out = [];
			for (const li of visible.querySelectorAll('li')) {
				const r = li.getBoundingClientRect();
				if (r.width === 0 || r.height === 0) continue;
				if (!li.hasAttribute('data-dp-opt')) {
					li.setAttribute('data-dp-opt', String(++window.__dpOptSeq));
				}
				out.push({
					selector: 'li[data-dp-opt="' + li.getAttribute('data-dp-opt') + '"]',
					title: li.getAttribute('title') || '',
					text: li.innerText.trim(),
				});
			}
			return out;
		})(%s);
	`, jsonEncode(listSelector))

	var options []pilot.DropdownOption
	if err := s.evaluate(ctx, script, &options); err != nil {
		return nil, fmt.Errorf("option list enumeration for %q failed: %w", listSelector, err)
	}
	return options, nil
}

// CollectFieldStates snapshots every rendered form control on the current
// step. Selectors prefer the element id, then name (with value for radios),
// so the repair pass can address the same control again.
func (s *Session) CollectFieldStates(ctx context.Context) ([]pilot.FieldState, error) {
	script := `
		(function() {
			const controls = document.querySelectorAll('input, select, textarea');
			const out = [];
			for (const el of controls) {
				if (el.type === 'hidden') continue;
				const rect = el.getBoundingClientRect();
				const style = window.getComputedStyle(el);
				const visible = rect.width > 0 && rect.height > 0 &&
					style.display !== 'none' && style.visibility !== 'hidden';

				let selector = '';
				if (el.id) {
					selector = '#' + CSS.escape(el.id);
				} else if (el.name) {
					selector = el.tagName.toLowerCase() + '[name="' + CSS.escape(el.name) + '"]';
					if (el.type === 'radio' && el.value) {
						selector += '[value="' + CSS.escape(el.value) + '"]';
					}
				} else {
					continue;
				}

				let kind = el.tagName.toLowerCase() === 'select' ? 'select' : (el.type || 'text');
				if (kind !== 'select' && kind !== 'checkbox' && kind !== 'radio') kind = 'text';

				const group = el.closest('.form-group, .field-row, td, li');
				const errEl = group ? group.querySelector('.error-msg, .valid-error, .err-txt') : null;
				const errText = errEl && errEl.getBoundingClientRect().height > 0 ? errEl.innerText.trim() : '';

				out.push({
					selector: selector,
					name: el.name || '',
					kind: kind,
					visible: visible,
					interactive: !el.disabled && !el.readOnly,
					required: el.required || el.getAttribute('aria-required') === 'true',
					empty: kind === 'select' ? el.selectedIndex <= 0 : (el.value || '').trim() === '',
					invalid: el.getAttribute('aria-invalid') === 'true' ||
						el.classList.contains('error') || el.classList.contains('invalid') ||
						errText !== '',
					checked: kind === 'checkbox' || kind === 'radio' ? el.checked : false,
					errorText: errText,
				});
			}
			return out;
		})();
	`

	var states []pilot.FieldState
	if err := s.evaluate(ctx, script, &states); err != nil {
		return nil, fmt.Errorf("field state collection failed: %w", err)
	}
	return states, nil
}

// HeadingTexts returns the trimmed texts of the heading elements inside the
// container, in document order.
func (s *Session) HeadingTexts(ctx context.Context, selector string) ([]string, error) {
	script := fmt.Sprintf(`
		(function(selector) {
			const root = document.querySelector(selector);
			if (!root) return null;
			return Array.from(root.querySelectorAll('h1, h2, h3, h4, h5, h6'))
				.map(h => h.innerText.trim())
				.filter(t => t.length > 0);
		})(%s);
	`, jsonEncode(selector))

	var raw json.RawMessage
	if err := s.evaluate(ctx, script, &raw); err != nil {
		return nil, fmt.Errorf("heading read for %q failed: %w", selector, err)
	}
	if string(raw) == "null" {
		return nil, fmt.Errorf("heading read for %q failed: container not found", selector)
	}
	var texts []string
	if err := json.Unmarshal(raw, &texts); err != nil {
		return nil, fmt.Errorf("heading read for %q returned unexpected payload: %w", selector, err)
	}
	return texts, nil
}

// Screenshot captures the full page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.runActions(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("full page screenshot failed: %w", err)
	}
	return buf, nil
}

// CaptureElement captures the rendered region of the first match as PNG bytes.
func (s *Session) CaptureElement(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	if err := s.runActions(ctx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("element capture for %q failed: %w", selector, err)
	}
	return buf, nil
}

// evaluate runs a JS expression and unmarshals the result into res. Promises
// are awaited and in-page exceptions are kept silent so a throwing script
// surfaces as an evaluation error, not console noise.
func (s *Session) evaluate(ctx context.Context, script string, res interface{}) error {
	return s.runActions(ctx,
		chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
}

// jsonEncode safely encodes a value for injection into a JS snippet.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
