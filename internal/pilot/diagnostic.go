// File: internal/pilot/diagnostic.go
package pilot

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/artifact"
)

// visibleTextCap bounds how much page text a snapshot carries.
const visibleTextCap = 1024

// Recovery captures a diagnostic snapshot for offline triage when extraction
// fails. Strictly best effort: it never returns an error and never panics past
// its boundary.
type Recovery struct {
	page   Page
	store  *artifact.Store
	logger *zap.Logger
}

// NewRecovery creates a recovery capturer bound to one page handle.
func NewRecovery(page Page, store *artifact.Store, logger *zap.Logger) *Recovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recovery{page: page, store: store, logger: logger.Named("diagnostic")}
}

// Capture records a full-page screenshot, up to 1KB of visible text, and the
// success-indicator flags, serialized to a timestamped sidecar.
func (r *Recovery) Capture(ctx context.Context) {
	snap := &artifact.DiagnosticSnapshot{Timestamp: time.Now()}

	if shot, err := r.page.Screenshot(ctx); err == nil {
		snap.Screenshot = shot
	} else {
		r.logger.Debug("Diagnostic screenshot failed.", zap.Error(err))
	}

	if text, err := r.page.VisibleText(ctx); err == nil {
		snap.VisibleText = truncateText(strings.TrimSpace(text), visibleTextCap)
	}

	snap.Flags.ConfirmationDialogPresent = r.visible(ctx, selConfirmationDialog)
	snap.Flags.ArtifactContainerPresent = r.visible(ctx, selArtifactContainer)
	snap.Flags.SuccessTextPresent = strings.Contains(strings.ToUpper(snap.VisibleText), "REGISTRATION")

	if path, err := r.store.SaveDiagnostic(snap); err != nil {
		r.logger.Warn("Could not persist diagnostic snapshot.", zap.Error(err))
	} else {
		r.logger.Info("Diagnostic snapshot captured.", zap.String("sidecar", path))
	}
}

// truncateText bounds text to limit bytes, backing off to a rune boundary so
// the sidecar never carries a split multi-byte sequence.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

func (r *Recovery) visible(ctx context.Context, selector string) bool {
	visible, err := r.page.IsVisible(ctx, selector)
	return err == nil && visible
}
