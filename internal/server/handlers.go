// File: internal/server/handlers.go
package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/artifact"
	"github.com/minsu-cho/declarepass/internal/form"
	"github.com/minsu-cho/declarepass/internal/pilot"
	"github.com/minsu-cho/declarepass/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type submissionRequest struct {
	FormData form.FormSubmissionRequest `json:"formData"`
	Options  requestOptions             `json:"options"`
}

type requestOptions struct {
	Headless *bool `json:"headless,omitempty"`
	Timeout  int   `json:"timeout,omitempty"` // seconds
	Retries  int   `json:"retries,omitempty"`
}

type qrCodePayload struct {
	ImageData string `json:"imageData"`
	Format    string `json:"format"`
	Size      qrSize `json:"size"`
}

type qrSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type submissionDetails struct {
	SubmissionTime  time.Time `json:"submissionTime"`
	Status          string    `json:"status"`
	ReferenceNumber string    `json:"referenceNumber"`
}

type successEnvelope struct {
	Success           bool              `json:"success"`
	QRCode            *qrCodePayload    `json:"qrCode,omitempty"`
	SubmissionDetails submissionDetails `json:"submissionDetails"`
	Message           string            `json:"message,omitempty"`
}

type errorPayload struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Step    string      `json:"step"`
	Details interface{} `json:"details,omitempty"`
}

type failureEnvelope struct {
	Success     bool         `json:"success"`
	Error       errorPayload `json:"error"`
	FallbackURL string       `json:"fallbackUrl"`
}

func (s *Server) handleSubmitDeclaration(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, errorPayload{
			Code:    pilot.CodeInvalidFormData,
			Message: "request body is not valid JSON: " + err.Error(),
			Step:    string(pilot.StepValidation),
		})
		return
	}

	if err := req.FormData.Validate(); err != nil {
		s.writeFailure(w, http.StatusBadRequest, s.errorPayloadFor(err))
		return
	}

	opts := service.SubmitOptions{
		Headless: req.Options.Headless,
		Retries:  req.Options.Retries,
	}
	if req.Options.Timeout > 0 {
		opts.Timeout = time.Duration(req.Options.Timeout) * time.Second
	}

	result, err := s.submitter.Submit(r.Context(), &req.FormData, opts)
	if err != nil {
		payload := s.errorPayloadFor(err)
		s.logger.Warn("Declaration submission failed.",
			zap.String("code", payload.Code),
			zap.String("step", payload.Step),
			zap.Error(err))
		s.writeFailure(w, statusFor(payload.Code), payload)
		return
	}

	s.writeJSON(w, http.StatusOK, successResponse(result))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"endpoints": []string{
			"POST /api/v1/declarations",
			"GET /health",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func successResponse(result *artifact.ConfirmationArtifact) successEnvelope {
	env := successEnvelope{
		Success: true,
		Message: result.Message,
		SubmissionDetails: submissionDetails{
			SubmissionTime:  result.ExtractedAt,
			Status:          "confirmed",
			ReferenceNumber: result.RegistrationNumber,
		},
	}
	if len(result.Image.Bytes) > 0 {
		env.QRCode = &qrCodePayload{
			ImageData: base64.StdEncoding.EncodeToString(result.Image.Bytes),
			Format:    result.Image.Format,
			Size:      qrSize{Width: result.Image.Width, Height: result.Image.Height},
		}
	}
	return env
}

// errorPayloadFor maps an internal failure to the public envelope, attaching
// structured details where the error type carries them.
// timeoutMessage replaces internal error text on the timeout code so the
// envelope never leaks pipeline details for failures the caller cannot act on.
const timeoutMessage = "the automation did not complete in time; please submit manually"

func (s *Server) errorPayloadFor(err error) errorPayload {
	code, step := pilot.Classify(err)
	payload := errorPayload{Code: code, Message: err.Error(), Step: string(step)}
	if code == pilot.CodeTimeout {
		payload.Message = timeoutMessage
	}

	var invalidReq *form.ValidationError
	if errors.As(err, &invalidReq) {
		payload.Details = map[string]string{
			"field":  invalidReq.Field,
			"reason": invalidReq.Reason,
		}
		return payload
	}

	var unresolved *pilot.ValidationUnresolvedError
	if errors.As(err, &unresolved) {
		payload.Details = map[string]interface{}{
			"step":   unresolved.StepName,
			"issues": unresolved.Issues,
		}
	}
	return payload
}

func statusFor(code string) int {
	switch code {
	case pilot.CodeInvalidFormData, pilot.CodeUnknownFieldKey:
		return http.StatusBadRequest
	case pilot.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, payload errorPayload) {
	s.writeJSON(w, status, failureEnvelope{
		Success:     false,
		Error:       payload,
		FallbackURL: s.fallbackURL,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response body.", zap.Error(err))
	}
}
