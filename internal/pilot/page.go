// File: internal/pilot/page.go
package pilot

import "context"

// Page is the narrow set of primitives the pipeline needs from a live browser
// tab. The Session Controller owns the handle for the duration of one
// submission attempt; no component retains it beyond the call. The chromedp
// session implements it; tests substitute a mock.
type Page interface {
	// Navigate loads a URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Click dispatches a click on the first element matching selector.
	Click(ctx context.Context, selector string) error

	// SetValue sets the value of an input/textarea/native-select control and
	// fires the change events the portal's scripts listen for.
	SetValue(ctx context.Context, selector, value string) error

	// DispatchPointer force-focuses the element and fires synthetic
	// pointerdown/pointerup/click events. Last resort for controls that
	// swallow ordinary clicks.
	DispatchPointer(ctx context.Context, selector string) error

	// IsVisible reports whether the first match for selector exists and is
	// rendered visible (non-zero box, not display:none/visibility:hidden).
	IsVisible(ctx context.Context, selector string) (bool, error)

	// Text returns the trimmed inner text of the first match.
	Text(ctx context.Context, selector string) (string, error)

	// VisibleText returns the page's visible body text.
	VisibleText(ctx context.Context) (string, error)

	// ListOptions returns the visible options inside an option-list instance,
	// in document order. An empty slice means the list is not open.
	ListOptions(ctx context.Context, listSelector string) ([]DropdownOption, error)

	// CollectFieldStates snapshots the state of every form control rendered on
	// the current step, for the validation detection pass.
	CollectFieldStates(ctx context.Context) ([]FieldState, error)

	// HeadingTexts returns the trimmed texts of the heading elements inside
	// selector, in document order.
	HeadingTexts(ctx context.Context, selector string) ([]string, error)

	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// CaptureElement captures the rendered region of the first match as PNG bytes.
	CaptureElement(ctx context.Context, selector string) ([]byte, error)

	// DownloadDir is the session-scoped directory the browser downloads into.
	DownloadDir() string

	// DownloadEvents delivers the destination path of each completed browser
	// download. The channel is owned by the session and closed with it.
	DownloadEvents() <-chan string
}

// DropdownOption is one visible entry of a custom dropdown's option list.
// Title is the stable identity attribute; Text the visible label.
type DropdownOption struct {
	Selector string `json:"selector"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}

// FieldState is the rendered state of one form control, as seen by the
// validation detection pass.
type FieldState struct {
	Selector    string `json:"selector"`
	Name        string `json:"name"`
	Kind        string `json:"kind"` // input kind: text, select, checkbox, radio
	Visible     bool   `json:"visible"`
	Interactive bool   `json:"interactive"` // not disabled/readonly
	Required    bool   `json:"required"`
	Empty       bool   `json:"empty"`
	Invalid     bool   `json:"invalid"` // flagged invalid by the portal itself
	Checked     bool   `json:"checked"` // radio/checkbox only
	ErrorText   string `json:"errorText"`
}
