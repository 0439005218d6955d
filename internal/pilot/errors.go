// File: internal/pilot/errors.go
package pilot

import (
	"errors"
	"fmt"

	"github.com/minsu-cho/declarepass/internal/form"
)

// Step identifies which stage of the pipeline a failure surfaced from. The
// values are part of the public error envelope.
type Step string

const (
	StepValidation   Step = "validation"
	StepNavigation   Step = "navigation"
	StepFormFill     Step = "form_fill"
	StepSubmission   Step = "submission"
	StepQRExtraction Step = "qr_extraction"
)

// Error codes carried in the public envelope.
const (
	CodeInvalidFormData      = "INVALID_FORM_DATA"
	CodeUnknownFieldKey      = "UNKNOWN_FIELD_KEY"
	CodeDropdownOpenFailed   = "DROPDOWN_OPEN_FAILED"
	CodeOptionNotFound       = "OPTION_NOT_FOUND"
	CodeStepNotVerified      = "STEP_NOT_VERIFIED"
	CodeValidationIncomplete = "VALIDATION_UNRESOLVED"
	CodeExtractionFailed     = "QR_EXTRACTION_FAILED"
	CodeTimeout              = "AUTOMATION_TIMEOUT"
)

// DropdownOpenError reports that a dropdown widget never produced a visible
// option list within the attempt budget.
type DropdownOpenError struct {
	Field    string
	Attempts int
}

func (e *DropdownOpenError) Error() string {
	return fmt.Sprintf("dropdown %q did not open after %d attempts", e.Field, e.Attempts)
}

// OptionNotFoundError reports that a dropdown opened but the target value was
// not among its options. This is deterministic for absent values; retrying
// the match cannot help.
type OptionNotFoundError struct {
	Field    string
	Value    string
	Attempts int
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("dropdown %q has no option matching %q (%d attempts)", e.Field, e.Value, e.Attempts)
}

// OptionCommitError reports that the widget opened and the target option was
// found, but clicking it never committed within the attempt budget.
type OptionCommitError struct {
	Field    string
	Value    string
	Attempts int
}

func (e *OptionCommitError) Error() string {
	return fmt.Sprintf("dropdown %q could not commit option %q after %d attempts", e.Field, e.Value, e.Attempts)
}

// StepNotVerifiedError reports that a wizard step transition could not be
// confirmed from the rendered page markers.
type StepNotVerifiedError struct {
	StepName string
	Attempts int
}

func (e *StepNotVerifiedError) Error() string {
	return fmt.Sprintf("transition to step %q not verified after %d attempts", e.StepName, e.Attempts)
}

// ValidationUnresolvedError carries the issues still present after the repair
// pass. Submission proceeds best-effort; the error is surfaced only if the
// portal rejects the step because of it.
type ValidationUnresolvedError struct {
	StepName string
	Issues   []ValidationIssue
}

func (e *ValidationUnresolvedError) Error() string {
	return fmt.Sprintf("step %q has %d unresolved validation issues", e.StepName, len(e.Issues))
}

// ExtractionError wraps any failure between confirmed submission success and a
// persisted confirmation artifact. It triggers diagnostic recovery.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("confirmation extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("confirmation extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Classify maps an internal failure to the public (code, step) pair. Unknown
// errors classify as a submission-stage timeout wrapper, matching the policy
// that the outermost boundary never leaks raw internal errors.
func Classify(err error) (code string, step Step) {
	var (
		openErr    *DropdownOpenError
		commitErr  *OptionCommitError
		optionErr  *OptionNotFoundError
		verifyErr  *StepNotVerifiedError
		unresolved *ValidationUnresolvedError
		extractErr *ExtractionError
		invalidReq *form.ValidationError
	)
	switch {
	case errors.As(err, &invalidReq):
		return CodeInvalidFormData, StepValidation
	case errors.Is(err, form.ErrUnknownFieldKey):
		return CodeUnknownFieldKey, StepFormFill
	case errors.As(err, &commitErr):
		return CodeDropdownOpenFailed, StepFormFill
	case errors.As(err, &openErr), errors.As(err, &optionErr):
		return codeFor(err), StepFormFill
	case errors.As(err, &verifyErr):
		return CodeStepNotVerified, StepNavigation
	case errors.As(err, &unresolved):
		return CodeValidationIncomplete, StepSubmission
	case errors.As(err, &extractErr):
		return CodeExtractionFailed, StepQRExtraction
	case errors.Is(err, ErrAwaitTimeout):
		return CodeTimeout, StepSubmission
	default:
		return CodeTimeout, StepSubmission
	}
}

func codeFor(err error) string {
	var openErr *DropdownOpenError
	if errors.As(err, &openErr) {
		return CodeDropdownOpenFailed
	}
	return CodeOptionNotFound
}
