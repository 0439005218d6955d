// File: internal/artifact/artifact.go
package artifact

import "time"

// CaptureMethod records how the confirmation image was obtained.
type CaptureMethod string

const (
	// CaptureDirect is the primary path: the portal's own download action.
	CaptureDirect CaptureMethod = "direct"
	// CaptureFallback is the secondary path: a screenshot of the rendered
	// artifact container.
	CaptureFallback CaptureMethod = "fallback"
)

// ImageInfo describes the captured confirmation image. Bytes are persisted to
// the image file, not the sidecar.
type ImageInfo struct {
	Bytes  []byte `json:"-"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ConfirmationArtifact is the scannable-code image plus registration metadata
// the portal produces on successful submission. Created at most once per
// submission; immutable after creation.
type ConfirmationArtifact struct {
	RegistrationNumber string        `json:"registrationNumber"`
	PortInfo           string        `json:"portInfo"`
	CustomsOffice      string        `json:"customsOffice"`
	Message            string        `json:"message"`
	Image              ImageInfo     `json:"image"`
	ExtractedAt        time.Time     `json:"extractedAt"`
	CaptureMethod      CaptureMethod `json:"captureMethod"`
}

// SnapshotFlags record which success indicators were present when extraction failed.
type SnapshotFlags struct {
	ConfirmationDialogPresent bool `json:"confirmationDialogPresent"`
	ArtifactContainerPresent  bool `json:"artifactContainerPresent"`
	SuccessTextPresent        bool `json:"successTextPresent"`
}

// DiagnosticSnapshot is the offline-triage capture taken when extraction throws.
type DiagnosticSnapshot struct {
	Screenshot  []byte        `json:"-"`
	VisibleText string        `json:"visibleText"`
	Timestamp   time.Time     `json:"timestamp"`
	Flags       SnapshotFlags `json:"flags"`
}
