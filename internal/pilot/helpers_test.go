// File: internal/pilot/helpers_test.go
package pilot

// The tests live inside the pilot package to reach unexported engine knobs
// (poll intervals, timeouts) and the portal step table.

import (
	"context"
	"fmt"
	"sync"
)

// fakePage is a scriptable in-memory Page. Visibility can be driven either by
// the static visible map or by visibleFn for stateful scenarios; clickHook
// lets a test advance its own state machine on every click.
type fakePage struct {
	mu sync.Mutex

	visible   map[string]bool
	visibleFn func(selector string) bool
	texts     map[string]string
	headings  map[string][]string
	options   map[string][]DropdownOption
	states    []FieldState
	bodyText  string
	shots     map[string][]byte
	fullShot  []byte

	downloadDir string
	downloads   chan string

	navErr      error
	clickErrs   map[string]error
	setValueErr error
	captureErrs map[string]error

	clickHook func(selector string)

	interactions []string
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:     map[string]bool{},
		texts:       map[string]string{},
		headings:    map[string][]string{},
		options:     map[string][]DropdownOption{},
		shots:       map[string][]byte{},
		clickErrs:   map[string]error{},
		captureErrs: map[string]error{},
		downloads:   make(chan string, 1),
	}
}

func (p *fakePage) record(action string) {
	p.interactions = append(p.interactions, action)
}

// count returns how many recorded interactions start with prefix.
func (p *fakePage) count(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, i := range p.interactions {
		if len(i) >= len(prefix) && i[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(fmt.Sprintf("Navigate(%s)", url))
	return p.navErr
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.record(fmt.Sprintf("Click(%s)", selector))
	err := p.clickErrs[selector]
	hook := p.clickHook
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(selector)
	}
	return nil
}

func (p *fakePage) SetValue(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(fmt.Sprintf("SetValue(%s, %s)", selector, value))
	return p.setValueErr
}

func (p *fakePage) DispatchPointer(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.record(fmt.Sprintf("DispatchPointer(%s)", selector))
	hook := p.clickHook
	p.mu.Unlock()
	if hook != nil {
		hook(selector)
	}
	return nil
}

func (p *fakePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	fn := p.visibleFn
	v := p.visible[selector]
	p.mu.Unlock()
	if fn != nil {
		return fn(selector), nil
	}
	return v, nil
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.texts[selector]
	if !ok {
		return "", fmt.Errorf("no text scripted for %q", selector)
	}
	return text, nil
}

func (p *fakePage) VisibleText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodyText, nil
}

func (p *fakePage) ListOptions(ctx context.Context, listSelector string) ([]DropdownOption, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(fmt.Sprintf("ListOptions(%s)", listSelector))
	return p.options[listSelector], nil
}

func (p *fakePage) CollectFieldStates(ctx context.Context) ([]FieldState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states, nil
}

func (p *fakePage) HeadingTexts(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	headings, ok := p.headings[selector]
	if !ok {
		return nil, fmt.Errorf("no headings scripted for %q", selector)
	}
	return headings, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fullShot, nil
}

func (p *fakePage) CaptureElement(ctx context.Context, selector string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.captureErrs[selector]; err != nil {
		return nil, err
	}
	shot, ok := p.shots[selector]
	if !ok {
		return nil, fmt.Errorf("no capture scripted for %q", selector)
	}
	return shot, nil
}

func (p *fakePage) DownloadDir() string { return p.downloadDir }

func (p *fakePage) DownloadEvents() <-chan string { return p.downloads }

var _ Page = (*fakePage)(nil)
