// File: internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minsu-cho/declarepass/internal/artifact"
	"github.com/minsu-cho/declarepass/internal/config"
	"github.com/minsu-cho/declarepass/internal/form"
	"github.com/minsu-cho/declarepass/internal/pilot"
	"github.com/minsu-cho/declarepass/internal/service"
)

// stubSubmitter records the request it received and returns a scripted result.
type stubSubmitter struct {
	result  *artifact.ConfirmationArtifact
	err     error
	calls   int
	gotReq  *form.FormSubmissionRequest
	gotOpts service.SubmitOptions
}

func (s *stubSubmitter) Submit(ctx context.Context, req *form.FormSubmissionRequest, opts service.SubmitOptions) (*artifact.ConfirmationArtifact, error) {
	s.calls++
	s.gotReq = req
	s.gotOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestServer(sub *stubSubmitter) *Server {
	cfg := config.NewDefaultConfig()
	cfg.Portal.FallbackURL = "https://portal.example/manual"
	return New(sub, cfg, "test-version", nil)
}

func boolPtr(v bool) *bool { return &v }

func requestBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"formData": form.FormSubmissionRequest{
			FamilyName:       "HONG",
			GivenName:        "GILDONG",
			PassportNumber:   "M12345678",
			Nationality:      "KR",
			BirthDate:        "1990-03-15",
			Gender:           "M",
			FlightNumber:     "KE082",
			ArrivalDate:      "2026-09-01",
			ArrivalPort:      "ICN",
			DepartureCountry: "US",
			AddressInCountry: "12 Teheran-ro, Seoul",
			Declaration: form.DeclarationFlags{
				CurrencyOverLimit: boolPtr(false),
				RestrictedItems:   boolPtr(false),
				ExceedsDutyFree:   boolPtr(false),
				CommercialGoods:   boolPtr(false),
			},
		},
		"options": map[string]interface{}{
			"timeout": 90,
			"retries": 2,
		},
	})
	require.NoError(t, err)
	return body
}

func postDeclaration(t *testing.T, srv *Server, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/declarations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestSubmitDeclarationSuccess(t *testing.T) {
	imageBytes := []byte("qr-image-bytes")
	sub := &stubSubmitter{
		result: &artifact.ConfirmationArtifact{
			RegistrationNumber: "A1B2C3",
			PortInfo:           "INCHEON INTERNATIONAL AIRPORT (T1)",
			CustomsOffice:      "INCHEON CUSTOMS",
			Message:            "Declaration completed",
			Image:              artifact.ImageInfo{Bytes: imageBytes, Format: "png", Width: 200, Height: 200},
			ExtractedAt:        time.Now(),
			CaptureMethod:      artifact.CaptureDirect,
		},
	}
	srv := newTestServer(sub)

	rec := postDeclaration(t, srv, requestBody(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var env successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "A1B2C3", env.SubmissionDetails.ReferenceNumber)
	assert.Equal(t, "confirmed", env.SubmissionDetails.Status)
	assert.Equal(t, "Declaration completed", env.Message)

	require.NotNil(t, env.QRCode)
	decoded, err := base64.StdEncoding.DecodeString(env.QRCode.ImageData)
	require.NoError(t, err)
	assert.Equal(t, imageBytes, decoded)
	assert.Equal(t, "png", env.QRCode.Format)
	assert.Equal(t, 200, env.QRCode.Size.Width)
	assert.Equal(t, 200, env.QRCode.Size.Height)

	// The size field is the image's dimensions, not a byte count.
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	qr, ok := raw["qrCode"].(map[string]interface{})
	require.True(t, ok)
	_, ok = qr["size"].(map[string]interface{})
	require.True(t, ok)

	// Per-request options were threaded through to the pipeline.
	assert.Equal(t, 90*time.Second, sub.gotOpts.Timeout)
	assert.Equal(t, 2, sub.gotOpts.Retries)
	assert.Equal(t, "HONG", sub.gotReq.FamilyName)
}

func TestSubmitDeclarationMalformedJSON(t *testing.T) {
	sub := &stubSubmitter{}
	srv := newTestServer(sub)

	rec := postDeclaration(t, srv, []byte("{not json"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env failureEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, pilot.CodeInvalidFormData, env.Error.Code)
	assert.Equal(t, "https://portal.example/manual", env.FallbackURL)
	assert.Zero(t, sub.calls)
}

func TestSubmitDeclarationIncompleteFormData(t *testing.T) {
	sub := &stubSubmitter{}
	srv := newTestServer(sub)

	body, err := json.Marshal(map[string]interface{}{
		"formData": map[string]interface{}{"familyName": "HONG"},
	})
	require.NoError(t, err)

	rec := postDeclaration(t, srv, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env failureEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, pilot.CodeInvalidFormData, env.Error.Code)
	assert.Equal(t, string(pilot.StepValidation), env.Error.Step)
	assert.NotNil(t, env.Error.Details)
	assert.Zero(t, sub.calls, "an invalid request must never reach the browser")
}

func TestSubmitDeclarationPipelineFailure(t *testing.T) {
	sub := &stubSubmitter{
		err: &pilot.OptionNotFoundError{Field: "traveler.nationality", Value: "ZZ", Attempts: 1},
	}
	srv := newTestServer(sub)

	rec := postDeclaration(t, srv, requestBody(t))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var env failureEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, pilot.CodeOptionNotFound, env.Error.Code)
	assert.Equal(t, string(pilot.StepFormFill), env.Error.Step)
	assert.Equal(t, "https://portal.example/manual", env.FallbackURL)
}

func TestSubmitDeclarationTimeoutMapsToGatewayTimeout(t *testing.T) {
	sub := &stubSubmitter{err: fmt.Errorf("submission outcome ambiguous: %w", pilot.ErrAwaitTimeout)}
	srv := newTestServer(sub)

	rec := postDeclaration(t, srv, requestBody(t))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var env failureEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, pilot.CodeTimeout, env.Error.Code)
	assert.Equal(t, timeoutMessage, env.Error.Message)
	assert.NotContains(t, env.Error.Message, "ambiguous")
}

func TestSubmitDeclarationUnresolvedValidationDetails(t *testing.T) {
	sub := &stubSubmitter{
		err: &pilot.ValidationUnresolvedError{
			StepName: "review",
			Issues:   []pilot.ValidationIssue{{FieldRef: "#passportNo", Reason: pilot.ReasonRenderedError, Hint: "invalid passport"}},
		},
	}
	srv := newTestServer(sub)

	rec := postDeclaration(t, srv, requestBody(t))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var env failureEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, pilot.CodeValidationIncomplete, env.Error.Code)
	assert.NotNil(t, env.Error.Details)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
	assert.Contains(t, body, "endpoints")
	assert.Contains(t, body, "timestamp")
}
