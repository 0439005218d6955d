// File: internal/form/request.go
package form

import (
	"fmt"
	"strings"
	"time"
)

// FormSubmissionRequest is the structured traveler/declaration data mapped onto
// the portal's controls. It is passed by reference through every component call;
// no component keeps ambient state derived from it.
type FormSubmissionRequest struct {
	FamilyName     string `json:"familyName"`
	GivenName      string `json:"givenName"`
	PassportNumber string `json:"passportNumber"`
	Nationality    string `json:"nationality"` // ISO-style country code, e.g. "KR"
	BirthDate      string `json:"birthDate"`   // YYYY-MM-DD
	Gender         string `json:"gender"`      // "M" or "F"
	Occupation     string `json:"occupation"`

	FlightNumber     string `json:"flightNumber"`
	ArrivalDate      string `json:"arrivalDate"` // YYYY-MM-DD
	ArrivalPort      string `json:"arrivalPort"` // port code, e.g. "ICN"
	DepartureCountry string `json:"departureCountry"`

	AddressInCountry string `json:"addressInCountry"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`

	Declaration   DeclarationFlags `json:"declaration"`
	FamilyMembers []FamilyMember   `json:"familyMembers"`
	Goods         []DeclaredGood   `json:"goods"`
}

// DeclarationFlags are the customs declaration questions. Pointers distinguish
// "answered no" from "not answered"; an unanswered flag fails validation.
type DeclarationFlags struct {
	CurrencyOverLimit *bool `json:"currencyOverLimit"`
	RestrictedItems   *bool `json:"restrictedItems"`
	ExceedsDutyFree   *bool `json:"exceedsDutyFree"`
	CommercialGoods   *bool `json:"commercialGoods"`
}

// FamilyMember is one accompanying traveler row.
type FamilyMember struct {
	FamilyName   string `json:"familyName"`
	GivenName    string `json:"givenName"`
	Nationality  string `json:"nationality"`
	BirthDate    string `json:"birthDate"`
	Relationship string `json:"relationship"`
}

// DeclaredGood is one declared goods row.
type DeclaredGood struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Value       string `json:"value"`
	Currency    string `json:"currency"`
}

// ValidationError reports the first completeness violation found in a request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid form data: field %q %s", e.Field, e.Reason)
}

// Validate enforces the completeness invariant: all required fields present and
// non-empty, declaration flags answered, row entries complete. It must pass
// before any browser interaction is attempted.
func (r *FormSubmissionRequest) Validate() error {
	required := []struct{ name, value string }{
		{"familyName", r.FamilyName},
		{"givenName", r.GivenName},
		{"passportNumber", r.PassportNumber},
		{"nationality", r.Nationality},
		{"birthDate", r.BirthDate},
		{"gender", r.Gender},
		{"flightNumber", r.FlightNumber},
		{"arrivalDate", r.ArrivalDate},
		{"arrivalPort", r.ArrivalPort},
		{"departureCountry", r.DepartureCountry},
		{"addressInCountry", r.AddressInCountry},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
	}

	for _, d := range []struct{ name, value string }{
		{"birthDate", r.BirthDate},
		{"arrivalDate", r.ArrivalDate},
	} {
		if _, err := time.Parse("2006-01-02", d.value); err != nil {
			return &ValidationError{Field: d.name, Reason: "must be a YYYY-MM-DD date"}
		}
	}

	if g := strings.ToUpper(r.Gender); g != "M" && g != "F" {
		return &ValidationError{Field: "gender", Reason: `must be "M" or "F"`}
	}

	flags := []struct {
		name  string
		value *bool
	}{
		{"declaration.currencyOverLimit", r.Declaration.CurrencyOverLimit},
		{"declaration.restrictedItems", r.Declaration.RestrictedItems},
		{"declaration.exceedsDutyFree", r.Declaration.ExceedsDutyFree},
		{"declaration.commercialGoods", r.Declaration.CommercialGoods},
	}
	for _, f := range flags {
		if f.value == nil {
			return &ValidationError{Field: f.name, Reason: "must be answered"}
		}
	}

	for i, fm := range r.FamilyMembers {
		prefix := fmt.Sprintf("familyMembers[%d].", i)
		if strings.TrimSpace(fm.FamilyName) == "" {
			return &ValidationError{Field: prefix + "familyName", Reason: "is required"}
		}
		if strings.TrimSpace(fm.GivenName) == "" {
			return &ValidationError{Field: prefix + "givenName", Reason: "is required"}
		}
		if strings.TrimSpace(fm.Nationality) == "" {
			return &ValidationError{Field: prefix + "nationality", Reason: "is required"}
		}
		if _, err := time.Parse("2006-01-02", fm.BirthDate); err != nil {
			return &ValidationError{Field: prefix + "birthDate", Reason: "must be a YYYY-MM-DD date"}
		}
	}

	for i, g := range r.Goods {
		prefix := fmt.Sprintf("goods[%d].", i)
		if strings.TrimSpace(g.Description) == "" {
			return &ValidationError{Field: prefix + "description", Reason: "is required"}
		}
		if g.Quantity <= 0 {
			return &ValidationError{Field: prefix + "quantity", Reason: "must be positive"}
		}
	}

	return nil
}
