// File: internal/pilot/submit.go
package pilot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/artifact"
)

// SubmitOutcome is the tri-state result of the final submit action.
type SubmitOutcome string

const (
	OutcomeConfirmed       SubmitOutcome = "confirmed"
	OutcomeValidationError SubmitOutcome = "validation_error"
	// OutcomeAmbiguous means neither a confirmation dialog nor a validation
	// indicator appeared within the timeout. Non-fatal, but logged distinctly
	// from confirmed success and never treated as one.
	OutcomeAmbiguous SubmitOutcome = "ambiguous"
)

var registrationNumberRe = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// officeMarker identifies the customs-office heading by a known office-name substring.
const officeMarker = "CUSTOMS"

// Extractor triggers the final submit, waits for a definite outcome, and on
// confirmed success extracts and persists the confirmation artifact.
type Extractor struct {
	page            Page
	store           *artifact.Store
	logger          *zap.Logger
	outcomeTimeout  time.Duration
	downloadTimeout time.Duration
	pollInterval    time.Duration
}

// NewExtractor creates an extractor bound to one page handle and an artifact store.
func NewExtractor(page Page, store *artifact.Store, outcomeTimeout time.Duration, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outcomeTimeout <= 0 {
		outcomeTimeout = 60 * time.Second
	}
	return &Extractor{
		page:            page,
		store:           store,
		logger:          logger.Named("extractor"),
		outcomeTimeout:  outcomeTimeout,
		downloadTimeout: 15 * time.Second,
		pollInterval:    300 * time.Millisecond,
	}
}

// AwaitOutcome waits for one of three outcomes after the submit action: a
// validation-error indicator, a confirmation dialog, or neither (ambiguous).
func (e *Extractor) AwaitOutcome(ctx context.Context) (SubmitOutcome, error) {
	outcome := OutcomeAmbiguous

	err := Await(ctx, func(ctx context.Context) (bool, error) {
		if visible, err := e.page.IsVisible(ctx, selConfirmationDialog); err == nil && visible {
			outcome = OutcomeConfirmed
			return true, nil
		}
		if visible, err := e.page.IsVisible(ctx, selValidationBanner); err == nil && visible {
			outcome = OutcomeValidationError
			return true, nil
		}
		return false, nil
	}, e.outcomeTimeout, e.pollInterval)

	if err != nil {
		if ctx.Err() != nil {
			return OutcomeAmbiguous, ctx.Err()
		}
		e.logger.Warn("Submit outcome remained ambiguous within timeout.")
		return OutcomeAmbiguous, nil
	}
	return outcome, nil
}

// Extract reads the confirmation artifact from the dialog. It must only be
// called after AwaitOutcome returned OutcomeConfirmed; the returned error is
// always an *ExtractionError (or a context error).
func (e *Extractor) Extract(ctx context.Context) (*artifact.ConfirmationArtifact, error) {
	// The dialog is confirmed visible; the artifact container inside it can
	// still render late.
	if err := Await(ctx, func(ctx context.Context) (bool, error) {
		visible, err := e.page.IsVisible(ctx, selArtifactContainer)
		if err != nil {
			return false, nil
		}
		return visible, nil
	}, e.outcomeTimeout, e.pollInterval); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ExtractionError{Reason: "artifact container never rendered"}
	}

	message, err := e.page.Text(ctx, selConfirmationMsg)
	if err != nil {
		return nil, &ExtractionError{Reason: "reading confirmation message", Err: err}
	}
	headings, err := e.page.HeadingTexts(ctx, selConfirmationDialog)
	if err != nil {
		return nil, &ExtractionError{Reason: "reading confirmation headings", Err: err}
	}

	art := parseConfirmation(message, headings)
	if art.RegistrationNumber == "" {
		return nil, &ExtractionError{
			Reason: fmt.Sprintf("no registration number among %d headings", len(headings)),
		}
	}

	img, method, err := e.captureImage(ctx)
	if err != nil {
		return nil, &ExtractionError{Reason: "capturing artifact image", Err: err}
	}
	art.Image = img
	art.CaptureMethod = method
	art.ExtractedAt = time.Now()

	if _, _, err := e.store.SaveConfirmation(art); err != nil {
		return nil, &ExtractionError{Reason: "persisting artifact", Err: err}
	}
	return art, nil
}

// parseConfirmation classifies the dialog's headings into the artifact fields.
// First pass is positional (port info, registration number, customs office in
// that order), each slot checked against its expected shape. A second pass
// fills any still-empty field by scanning all headings by shape alone.
func parseConfirmation(message string, headings []string) *artifact.ConfirmationArtifact {
	art := &artifact.ConfirmationArtifact{Message: strings.TrimSpace(message)}

	positional := []func(string) bool{isPortInfo, isRegistrationNumber, isCustomsOffice}
	assign := []func(*artifact.ConfirmationArtifact, string){
		func(a *artifact.ConfirmationArtifact, s string) { a.PortInfo = s },
		func(a *artifact.ConfirmationArtifact, s string) { a.RegistrationNumber = s },
		func(a *artifact.ConfirmationArtifact, s string) { a.CustomsOffice = s },
	}

	for i, check := range positional {
		if i >= len(headings) {
			break
		}
		h := strings.TrimSpace(headings[i])
		if check(h) {
			assign[i](art, h)
		}
	}

	// Secondary pass: shape alone, over all headings, for the slots the
	// positional pass left empty.
	for i, check := range positional {
		if fieldFilled(art, i) {
			continue
		}
		for _, raw := range headings {
			h := strings.TrimSpace(raw)
			if check(h) {
				assign[i](art, h)
				break
			}
		}
	}

	return art
}

func fieldFilled(a *artifact.ConfirmationArtifact, slot int) bool {
	switch slot {
	case 0:
		return a.PortInfo != ""
	case 1:
		return a.RegistrationNumber != ""
	default:
		return a.CustomsOffice != ""
	}
}

func isPortInfo(s string) bool {
	return strings.Contains(s, "(") && strings.Contains(s, ")")
}

func isRegistrationNumber(s string) bool {
	return registrationNumberRe.MatchString(s)
}

func isCustomsOffice(s string) bool {
	return strings.Contains(strings.ToUpper(s), officeMarker)
}

// captureImage obtains the artifact image. Primary path: trigger the portal's
// download action and await completion via both the browser's download event
// and filesystem polling, first signal to fire wins. Fallback: capture the
// artifact container's rendered region directly.
func (e *Extractor) captureImage(ctx context.Context) (artifact.ImageInfo, artifact.CaptureMethod, error) {
	if path, err := e.downloadImage(ctx); err == nil {
		data, readErr := os.ReadFile(path)
		if readErr == nil {
			// The persisted copy supersedes the intermediate download file.
			if rmErr := os.Remove(path); rmErr != nil {
				e.logger.Debug("Could not remove intermediate download.", zap.Error(rmErr))
			}
			return imageInfo(data), artifact.CaptureDirect, nil
		}
		e.logger.Warn("Downloaded artifact unreadable; falling back to region capture.", zap.Error(readErr))
	} else {
		if ctx.Err() != nil {
			return artifact.ImageInfo{}, "", ctx.Err()
		}
		e.logger.Warn("Primary artifact download failed; falling back to region capture.", zap.Error(err))
	}

	data, err := e.page.CaptureElement(ctx, selArtifactContainer)
	if err != nil {
		return artifact.ImageInfo{}, "", fmt.Errorf("fallback region capture: %w", err)
	}
	return imageInfo(data), artifact.CaptureFallback, nil
}

func (e *Extractor) downloadImage(ctx context.Context) (string, error) {
	dir := e.page.DownloadDir()
	if dir == "" {
		return "", fmt.Errorf("session has no download directory")
	}

	before, err := listFiles(dir)
	if err != nil {
		return "", fmt.Errorf("scanning download dir: %w", err)
	}

	if err := e.page.Click(ctx, selDownloadButton); err != nil {
		return "", fmt.Errorf("clicking download control: %w", err)
	}

	events := e.page.DownloadEvents()
	eventSignal := func(ctx context.Context) (string, error) {
		select {
		case path, ok := <-events:
			if !ok {
				return "", fmt.Errorf("download event channel closed")
			}
			return path, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	pollSignal := func(ctx context.Context) (string, error) {
		var found string
		err := Await(ctx, func(ctx context.Context) (bool, error) {
			after, err := listFiles(dir)
			if err != nil {
				return false, nil
			}
			for name := range after {
				if before[name] {
					continue
				}
				// Chrome writes to a .crdownload until the transfer finishes.
				if strings.HasSuffix(name, ".crdownload") {
					continue
				}
				found = filepath.Join(dir, name)
				return true, nil
			}
			return false, nil
		}, e.downloadTimeout, e.pollInterval)
		return found, err
	}

	return RaceCompletion(ctx, e.downloadTimeout, eventSignal, pollSignal)
}

func listFiles(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files[entry.Name()] = true
		}
	}
	return files, nil
}

// imageInfo decodes the image header for format and dimensions. An undecodable
// payload still produces a usable artifact; the metadata is best effort.
func imageInfo(data []byte) artifact.ImageInfo {
	info := artifact.ImageInfo{Bytes: data, Format: "png"}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		info.Format = format
		info.Width = cfg.Width
		info.Height = cfg.Height
	}
	return info
}
