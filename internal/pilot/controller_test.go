// File: internal/pilot/controller_test.go
package pilot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minsu-cho/declarepass/internal/artifact"
	"github.com/minsu-cho/declarepass/internal/form"
)

func boolPtr(v bool) *bool { return &v }

func validRequest() *form.FormSubmissionRequest {
	return &form.FormSubmissionRequest{
		FamilyName:       "HONG",
		GivenName:        "GILDONG",
		PassportNumber:   "M12345678",
		Nationality:      "KR",
		BirthDate:        "1990-03-15",
		Gender:           "M",
		Occupation:       "Engineer",
		FlightNumber:     "KE082",
		ArrivalDate:      "2026-09-01",
		ArrivalPort:      "ICN",
		DepartureCountry: "US",
		AddressInCountry: "12 Teheran-ro, Seoul",
		Phone:            "010-1234-5678",
		Email:            "hong@example.com",
		Declaration: form.DeclarationFlags{
			CurrencyOverLimit: boolPtr(false),
			RestrictedItems:   boolPtr(false),
			ExceedsDutyFree:   boolPtr(false),
			CommercialGoods:   boolPtr(false),
		},
		FamilyMembers: []form.FamilyMember{
			{FamilyName: "HONG", GivenName: "YOUNGHEE", Nationality: "KR", BirthDate: "1992-07-01", Relationship: "SPOUSE"},
			{FamilyName: "HONG", GivenName: "CHULSOO", Nationality: "KR", BirthDate: "2015-01-20", Relationship: "CHILD"},
		},
	}
}

// portalFake scripts the whole wizard as a state machine on top of fakePage:
// clicking a step's next control advances the rendered markers, dropdown
// triggers open their option lists, and the final submit renders either the
// confirmation dialog or the validation banner.
type portalFake struct {
	*fakePage

	mu           sync.Mutex
	stepIdx      int
	dropdownOpen bool
	submitted    bool
	rejectSubmit bool
	neverConfirm bool
}

func countryList() []DropdownOption {
	return []DropdownOption{
		{Selector: `li[data-dp-opt="1"]`, Title: "KR", Text: "KR - KOREA, REPUBLIC OF"},
		{Selector: `li[data-dp-opt="2"]`, Title: "US", Text: "US - UNITED STATES"},
		{Selector: `li[data-dp-opt="3"]`, Title: "JP", Text: "JP - JAPAN"},
	}
}

func newPortalFake(t *testing.T) *portalFake {
	t.Helper()
	p := &portalFake{fakePage: newFakePage()}

	p.options["div.sel-natn ul.ui-select-options"] = countryList()
	p.options["div.sel-dprt ul.ui-select-options"] = countryList()
	p.options["div.sel-port ul.ui-select-options"] = []DropdownOption{
		{Selector: `li[data-dp-opt="10"]`, Title: "ICN", Text: "ICN - INCHEON INTERNATIONAL AIRPORT (T1)"},
		{Selector: `li[data-dp-opt="11"]`, Title: "GMP", Text: "GMP - GIMPO INTERNATIONAL AIRPORT"},
	}
	for row := 0; row < 4; row++ {
		list := `#fmlyList .fmly-row[data-row="` + string(rune('0'+row)) + `"] ul.ui-select-options`
		p.options[list] = countryList()
	}

	p.texts[selConfirmationMsg] = "Declaration completed"
	p.headings[selConfirmationDialog] = []string{
		"INCHEON INTERNATIONAL AIRPORT (T1)",
		"A1B2C3",
		"INCHEON CUSTOMS",
	}
	p.shots[selArtifactContainer] = testPNG(t, 6, 6)

	p.visibleFn = p.isVisible
	p.clickHook = p.onClick
	return p
}

func (p *portalFake) isVisible(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch selector {
	case selConfirmationDialog, selArtifactContainer:
		return p.submitted && !p.rejectSubmit && !p.neverConfirm
	case selValidationBanner:
		return p.submitted && p.rejectSubmit
	}
	if strings.Contains(selector, "ui-select-options") {
		return p.dropdownOpen
	}
	for _, marker := range portalSteps[p.stepIdx].EnterMarkers {
		if marker == selector {
			return !p.submitted
		}
	}
	return false
}

func (p *portalFake) onClick(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case selector == portalSteps[p.stepIdx].NextButton:
		if p.stepIdx == len(portalSteps)-1 {
			p.submitted = true
		} else {
			p.stepIdx++
		}
	case strings.Contains(selector, "ui-select-trigger"):
		p.dropdownOpen = true
	case strings.HasPrefix(selector, "li[data-dp-opt"), selector == "body":
		p.dropdownOpen = false
	}
}

func newTestController(t *testing.T, page Page) *Controller {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	c := NewController(page, store, Options{
		BaseURL:       "https://portal.example/declare",
		StepTimeout:   500 * time.Millisecond,
		SubmitTimeout: 500 * time.Millisecond,
		StepRetries:   1,
		Retry:         RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond},
	}, nil)

	// Tighten the polling engines for test speed.
	c.verifier.interval = 5 * time.Millisecond
	c.dropdown.openTimeout = 50 * time.Millisecond
	c.dropdown.settleDelay = time.Millisecond
	c.extractor.pollInterval = 5 * time.Millisecond
	c.extractor.downloadTimeout = 50 * time.Millisecond
	return c
}

func TestControllerRunsFullWizard(t *testing.T) {
	portal := newPortalFake(t)
	c := newTestController(t, portal)

	art, err := c.Run(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "A1B2C3", art.RegistrationNumber)
	assert.Equal(t, "INCHEON INTERNATIONAL AIRPORT (T1)", art.PortInfo)
	assert.Equal(t, "INCHEON CUSTOMS", art.CustomsOffice)
	assert.Equal(t, artifact.CaptureFallback, art.CaptureMethod)

	// Traveler identity reached the page through the registry's locators.
	assert.Equal(t, 1, portal.count("SetValue(#familyNm, HONG)"))
	assert.Equal(t, 1, portal.count("SetValue(#passportNo, M12345678)"))
	assert.Equal(t, 1, portal.count("SetValue(#arvlDt, 2026.09.01)"))
	assert.Equal(t, 1, portal.count(`Click(input[name="sexCd"][value="M"])`))

	// Two family rows: the second row required an explicit add.
	assert.Equal(t, 1, portal.count("Click(#btnAddFmly)"))
	assert.Equal(t, 1, portal.count(`SetValue(#fmlyList .fmly-row[data-row="0"] input.fmly-given-nm, YOUNGHEE)`))
	assert.Equal(t, 1, portal.count(`SetValue(#fmlyList .fmly-row[data-row="1"] input.fmly-given-nm, CHULSOO)`))

	// Declaration questions answered through their radio groups.
	assert.Equal(t, 1, portal.count(`Click(input[name="crncyYn"][value="N"])`))
}

func TestControllerRunsMinimalRequest(t *testing.T) {
	portal := newPortalFake(t)
	c := newTestController(t, portal)

	// A lone traveler: no family members, no declared goods.
	req := validRequest()
	req.FamilyMembers = nil
	req.Goods = nil

	art, err := c.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Regexp(t, `^[A-Za-z0-9]{6}$`, art.RegistrationNumber)
	assert.Equal(t, "A1B2C3", art.RegistrationNumber)

	// The family and goods steps were traversed without touching their rows.
	assert.Equal(t, 0, portal.count("Click(#btnAddFmly)"))
	assert.Equal(t, 0, portal.count("SetValue(#fmlyList"))
	assert.Equal(t, 0, portal.count("SetValue(#goodsList"))
	assert.Equal(t, 1, portal.count("SetValue(#familyNm, HONG)"))
}

func TestControllerSurfacesPortalRejection(t *testing.T) {
	portal := newPortalFake(t)
	portal.rejectSubmit = true
	c := newTestController(t, portal)

	_, err := c.Run(context.Background(), validRequest())

	var unresolved *ValidationUnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "review", unresolved.StepName)

	code, step := Classify(err)
	assert.Equal(t, CodeValidationIncomplete, code)
	assert.Equal(t, StepSubmission, step)
}

func TestControllerAmbiguousOutcomeIsNotSuccess(t *testing.T) {
	portal := newPortalFake(t)
	portal.neverConfirm = true
	c := newTestController(t, portal)

	_, err := c.Run(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrAwaitTimeout)

	code, _ := Classify(err)
	assert.Equal(t, CodeTimeout, code)
}

func TestControllerFailsWhenFirstStepNeverRenders(t *testing.T) {
	page := newFakePage()
	// Nothing is ever visible.

	store, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	c := NewController(page, store, Options{
		BaseURL:     "https://portal.example/declare",
		StepTimeout: 50 * time.Millisecond,
		Retry:       RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond},
	}, nil)
	c.verifier.interval = 5 * time.Millisecond

	_, runErr := c.Run(context.Background(), validRequest())

	var verifyErr *StepNotVerifiedError
	require.ErrorAs(t, runErr, &verifyErr)
	assert.Equal(t, "intro", verifyErr.StepName)
}
