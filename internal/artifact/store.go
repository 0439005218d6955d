// File: internal/artifact/store.go
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// timestampLayout embeds the capture instant into file names. Nanosecond
// resolution keeps names deterministic per capture and distinct across
// back-to-back submissions within the same second.
const timestampLayout = "20060102T150405.000000000"

// Store persists confirmation artifacts and diagnostic snapshots under a
// configured directory, created on demand.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore resolves dir (expanding a leading ~) and returns a store. The
// directory itself is created lazily on first write.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is not configured")
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding artifact dir %q: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: expanded, logger: logger.Named("artifact_store")}, nil
}

// Dir returns the resolved artifact directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// SaveConfirmation writes the artifact image and its JSON sidecar, both named
// with the embedded capture timestamp. It returns the two paths.
func (s *Store) SaveConfirmation(a *ConfirmationArtifact) (imagePath, sidecarPath string, err error) {
	if err := s.ensureDir(); err != nil {
		return "", "", fmt.Errorf("creating artifact dir: %w", err)
	}

	stamp := a.ExtractedAt.Format(timestampLayout)
	ext := a.Image.Format
	if ext == "" {
		ext = "png"
	}
	imagePath = filepath.Join(s.dir, fmt.Sprintf("declaration_%s.%s", stamp, ext))
	sidecarPath = filepath.Join(s.dir, fmt.Sprintf("declaration_%s.json", stamp))

	if err := os.WriteFile(imagePath, a.Image.Bytes, 0o644); err != nil {
		return "", "", fmt.Errorf("writing artifact image: %w", err)
	}

	sidecar, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding artifact sidecar: %w", err)
	}
	if err := os.WriteFile(sidecarPath, sidecar, 0o644); err != nil {
		return "", "", fmt.Errorf("writing artifact sidecar: %w", err)
	}

	s.logger.Info("Confirmation artifact persisted.",
		zap.String("image", imagePath),
		zap.String("sidecar", sidecarPath),
		zap.String("capture_method", string(a.CaptureMethod)))
	return imagePath, sidecarPath, nil
}

// SaveDiagnostic writes a diagnostic snapshot: a full-page screenshot and a
// timestamped JSON sidecar. Best effort is the caller's policy; this just
// reports what failed.
func (s *Store) SaveDiagnostic(snap *DiagnosticSnapshot) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}

	stamp := snap.Timestamp.Format(timestampLayout)
	sidecarPath := filepath.Join(s.dir, fmt.Sprintf("diagnostic_%s.json", stamp))

	if len(snap.Screenshot) > 0 {
		shotPath := filepath.Join(s.dir, fmt.Sprintf("diagnostic_%s.png", stamp))
		if err := os.WriteFile(shotPath, snap.Screenshot, 0o644); err != nil {
			s.logger.Warn("Could not write diagnostic screenshot.", zap.Error(err))
		}
	}

	sidecar, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding diagnostic sidecar: %w", err)
	}
	if err := os.WriteFile(sidecarPath, sidecar, 0o644); err != nil {
		return "", fmt.Errorf("writing diagnostic sidecar: %w", err)
	}
	return sidecarPath, nil
}
