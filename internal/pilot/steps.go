// File: internal/pilot/steps.go
package pilot

// RowGroup identifies which repeating row group a step carries, if any.
type RowGroup string

const (
	RowsNone   RowGroup = ""
	RowsFamily RowGroup = "family"
	RowsGoods  RowGroup = "goods"
)

// StepDef declares one wizard step: the registry keys it fills, the control
// that advances it, and the markers used to verify that the portal actually
// rendered it. EnterMarkers appear only on this step; verification of a
// transition requires the destination's markers present and the origin's
// absent.
type StepDef struct {
	Name         string
	Fields       []string
	Rows         RowGroup
	RowFields    []string
	AddRowButton string
	NextButton   string
	EnterMarkers []string
}

// portalSteps is the fixed wizard sequence of the declaration portal. Like the
// field registry this is schema-bound configuration, loaded once.
var portalSteps = []StepDef{
	{
		Name:         "intro",
		NextButton:   "#btnStartDecl",
		EnterMarkers: []string{"#btnStartDecl", "div.intro-guide"},
	},
	{
		Name: "traveler",
		Fields: []string{
			"traveler.familyName",
			"traveler.givenName",
			"traveler.passportNumber",
			"traveler.nationality",
			"traveler.birthDate.year",
			"traveler.birthDate.month",
			"traveler.birthDate.day",
			"traveler.gender",
			"traveler.occupation",
			"travel.flightNumber",
			"travel.arrivalDate",
			"travel.arrivalPort",
			"travel.departureCountry",
			"travel.address",
			"travel.phone",
			"travel.email",
		},
		NextButton:   "#btnToFamily",
		EnterMarkers: []string{"#familyNm", "#passportNo"},
	},
	{
		Name:         "family",
		Rows:         RowsFamily,
		RowFields:    []string{"family.familyName", "family.givenName", "family.nationality", "family.birthDate", "family.relationship"},
		AddRowButton: "#btnAddFmly",
		NextButton:   "#btnToDecl",
		EnterMarkers: []string{"#fmlyList"},
	},
	{
		Name: "declaration",
		Fields: []string{
			"declaration.currencyOverLimit",
			"declaration.restrictedItems",
			"declaration.exceedsDutyFree",
			"declaration.commercialGoods",
		},
		Rows:         RowsGoods,
		RowFields:    []string{"goods.description", "goods.quantity", "goods.value", "goods.currency"},
		AddRowButton: "#btnAddGoods",
		NextButton:   "#btnToReview",
		EnterMarkers: []string{`input[name="crncyYn"]`, "#goodsList"},
	},
	{
		Name:         "review",
		NextButton:   "#btnSubmitDecl",
		EnterMarkers: []string{"#reviewSummary", "#btnSubmitDecl"},
	},
}

// radioDefaults maps radio group names to the repair default for that group.
// The declaration questions default to "no"; identity groups have no safe
// default and are left for re-surfacing.
var radioDefaults = map[string]string{
	"crncyYn":     "N",
	"rstrItemYn":  "N",
	"dutyFreeYn":  "N",
	"cmrcGoodsYn": "N",
}

// Confirmation-related selectors, fixed by the portal's markup.
const (
	selConfirmationDialog = "div.cnfm-dialog"
	selConfirmationMsg    = "div.cnfm-dialog .cnfm-msg"
	selArtifactContainer  = "div.cnfm-dialog #qrArea"
	selValidationBanner   = "div.valid-error-banner"
	selDownloadButton     = "#btnQrDownload"
)
