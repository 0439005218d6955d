// File: internal/artifact/store_test.go
package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreRequiresDirectory(t *testing.T) {
	_, err := NewStore("", nil)
	require.Error(t, err)
}

func TestSaveConfirmationWritesImageAndSidecar(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	extracted := time.Date(2026, 9, 1, 14, 30, 5, 123456789, time.UTC)
	art := &ConfirmationArtifact{
		RegistrationNumber: "A1B2C3",
		PortInfo:           "INCHEON INTERNATIONAL AIRPORT (T1)",
		CustomsOffice:      "INCHEON CUSTOMS",
		Message:            "Declaration completed",
		Image:              ImageInfo{Bytes: []byte("fake-image-bytes"), Format: "png", Width: 200, Height: 200},
		ExtractedAt:        extracted,
		CaptureMethod:      CaptureDirect,
	}

	imagePath, sidecarPath, err := store.SaveConfirmation(art)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "declaration_20260901T143005.123456789.png"), imagePath)
	assert.Equal(t, filepath.Join(dir, "declaration_20260901T143005.123456789.json"), sidecarPath)

	imageData, err := os.ReadFile(imagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-image-bytes"), imageData)

	sidecar, err := os.ReadFile(sidecarPath)
	require.NoError(t, err)
	assert.Contains(t, string(sidecar), `"registrationNumber": "A1B2C3"`)
	// Raw image bytes never leak into the sidecar.
	assert.NotContains(t, string(sidecar), "fake-image-bytes")
}

func TestSaveConfirmationSameSecondDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	base := time.Date(2026, 9, 1, 14, 30, 5, 0, time.UTC)
	first := &ConfirmationArtifact{
		RegistrationNumber: "A1B2C3",
		Image:              ImageInfo{Bytes: []byte("first"), Format: "png"},
		ExtractedAt:        base,
	}
	second := &ConfirmationArtifact{
		RegistrationNumber: "D4E5F6",
		Image:              ImageInfo{Bytes: []byte("second"), Format: "png"},
		ExtractedAt:        base.Add(40 * time.Millisecond),
	}

	firstImage, _, err := store.SaveConfirmation(first)
	require.NoError(t, err)
	secondImage, _, err := store.SaveConfirmation(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstImage, secondImage)
	data, err := os.ReadFile(firstImage)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
}

func TestSaveConfirmationDefaultsExtension(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	art := &ConfirmationArtifact{
		RegistrationNumber: "Q1W2E3",
		Image:              ImageInfo{Bytes: []byte("x")},
		ExtractedAt:        time.Now(),
	}

	imagePath, _, err := store.SaveConfirmation(art)
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(imagePath))
}

func TestSaveConfirmationCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "artifacts")
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	art := &ConfirmationArtifact{
		RegistrationNumber: "R4T5Y6",
		Image:              ImageInfo{Bytes: []byte("x"), Format: "png"},
		ExtractedAt:        time.Now(),
	}
	_, _, err = store.SaveConfirmation(art)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveDiagnosticWritesScreenshotAndSidecar(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	snap := &DiagnosticSnapshot{
		Screenshot:  []byte("screenshot-bytes"),
		VisibleText: "REGISTRATION COMPLETE",
		Timestamp:   time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		Flags:       SnapshotFlags{ConfirmationDialogPresent: true, SuccessTextPresent: true},
	}

	sidecarPath, err := store.SaveDiagnostic(snap)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "diagnostic_20260901T090000.000000000.json"), sidecarPath)

	_, err = os.Stat(filepath.Join(dir, "diagnostic_20260901T090000.000000000.png"))
	require.NoError(t, err)

	sidecar, err := os.ReadFile(sidecarPath)
	require.NoError(t, err)
	assert.Contains(t, string(sidecar), `"confirmationDialogPresent": true`)
}
