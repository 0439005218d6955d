// File: internal/form/registry.go
package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownFieldKey is returned by Resolve for a key absent from the registry.
// This is a programmer error, not a runtime condition; callers must not retry it.
var ErrUnknownFieldKey = errors.New("unknown field key")

// Kind classifies how a mapped control is driven on the page.
type Kind string

const (
	KindText       Kind = "text"
	KindSelect     Kind = "select"
	KindCheckbox   Kind = "checkbox"
	KindRadioGroup Kind = "radioGroup"
)

// ResolverFunc derives a control value from the request. Resolvers are pure:
// deterministic given the same request, no side effects. Row-scoped fields
// receive the row index; all others ignore it.
type ResolverFunc func(req *FormSubmissionRequest, row int) (string, error)

// FieldMapping declares how one semantic field key reaches the page. Locator
// and OptionList are opaque selector configuration; "{row}" inside either is
// expanded with the row index for repeating row groups.
type FieldMapping struct {
	Key        string
	Locator    string
	OptionList string // select widgets only: the option-list instance for this field
	Kind       Kind
	RowScoped  bool
	Attempts   int // per-field retry bound; 0 falls back to the engine default
	Resolve    ResolverFunc
}

// ResolvedField is the outcome of resolving a key against a request: a concrete
// locator, interaction kind, and the value to apply.
type ResolvedField struct {
	Key        string
	Locator    string
	OptionList string
	Kind       Kind
	Attempts   int
	Value      string
}

// Registry is the immutable declarative map from semantic field keys to page
// controls. It is loaded once and safe for reuse across sessions.
type Registry struct {
	fields map[string]FieldMapping
}

// Resolve looks up key and evaluates its resolver against the request.
// Row-scoped keys must be resolved through ResolveRow.
func (r *Registry) Resolve(key string, req *FormSubmissionRequest) (ResolvedField, error) {
	return r.ResolveRow(key, req, 0)
}

// ResolveRow resolves a key for a specific repeating-group row.
func (r *Registry) ResolveRow(key string, req *FormSubmissionRequest, row int) (ResolvedField, error) {
	m, ok := r.fields[key]
	if !ok {
		return ResolvedField{}, fmt.Errorf("%w: %q", ErrUnknownFieldKey, key)
	}

	value, err := m.Resolve(req, row)
	if err != nil {
		return ResolvedField{}, fmt.Errorf("resolving field %q: %w", key, err)
	}

	idx := strconv.Itoa(row)
	return ResolvedField{
		Key:        key,
		Locator:    strings.ReplaceAll(m.Locator, "{row}", idx),
		OptionList: strings.ReplaceAll(m.OptionList, "{row}", idx),
		Kind:       m.Kind,
		Attempts:   m.Attempts,
		Value:      value,
	}, nil
}

// Has reports whether key is present; the repair loop uses it to decide whether
// an issue is re-applicable through the normal fill path.
func (r *Registry) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Len returns the number of declared mappings.
func (r *Registry) Len() int { return len(r.fields) }

func text(req *FormSubmissionRequest, f func(*FormSubmissionRequest) string) (string, error) {
	return strings.TrimSpace(f(req)), nil
}

// portalDate renders a YYYY-MM-DD request date the way the portal inputs expect.
func portalDate(value string) (string, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return "", fmt.Errorf("malformed date %q: %w", value, err)
	}
	return t.Format("2006.01.02"), nil
}

func datePart(value, part string) (string, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return "", fmt.Errorf("malformed date %q: %w", value, err)
	}
	switch part {
	case "day":
		return fmt.Sprintf("%02d", t.Day()), nil
	case "month":
		return fmt.Sprintf("%02d", int(t.Month())), nil
	case "year":
		return strconv.Itoa(t.Year()), nil
	}
	return "", fmt.Errorf("unknown date part %q", part)
}

func boolValue(v *bool) (string, error) {
	if v == nil {
		return "", errors.New("declaration flag not answered")
	}
	if *v {
		return "Y", nil
	}
	return "N", nil
}

func familyMember(req *FormSubmissionRequest, row int) (*FamilyMember, error) {
	if row < 0 || row >= len(req.FamilyMembers) {
		return nil, fmt.Errorf("family member row %d out of range", row)
	}
	return &req.FamilyMembers[row], nil
}

func declaredGood(req *FormSubmissionRequest, row int) (*DeclaredGood, error) {
	if row < 0 || row >= len(req.Goods) {
		return nil, fmt.Errorf("goods row %d out of range", row)
	}
	return &req.Goods[row], nil
}

// NewRegistry builds the declarative portal field map. The selectors are bound
// to the known structure of the target declaration form; when that structure
// changes the registry is the single place to amend.
func NewRegistry() *Registry {
	fields := []FieldMapping{
		// -- Traveler identity (step 2) --
		{
			Key: "traveler.familyName", Locator: "#familyNm", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return text(req, func(r *FormSubmissionRequest) string { return r.FamilyName })
			},
		},
		{
			Key: "traveler.givenName", Locator: "#givenNm", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return text(req, func(r *FormSubmissionRequest) string { return r.GivenName })
			},
		},
		{
			Key: "traveler.passportNumber", Locator: "#passportNo", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return strings.ToUpper(strings.TrimSpace(req.PassportNumber)), nil
			},
		},
		{
			Key: "traveler.nationality", Kind: KindSelect,
			Locator:    `div.sel-natn .ui-select-trigger`,
			OptionList: `div.sel-natn ul.ui-select-options`,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return CountryDisplay(req.Nationality), nil
			},
		},
		{
			Key: "traveler.birthDate.year", Locator: "#birthYyyy", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return datePart(req.BirthDate, "year")
			},
		},
		{
			Key: "traveler.birthDate.month", Locator: "#birthMm", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return datePart(req.BirthDate, "month")
			},
		},
		{
			Key: "traveler.birthDate.day", Locator: "#birthDd", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return datePart(req.BirthDate, "day")
			},
		},
		{
			Key: "traveler.gender", Locator: `input[name="sexCd"]`, Kind: KindRadioGroup,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return strings.ToUpper(strings.TrimSpace(req.Gender)), nil
			},
		},
		{
			Key: "traveler.occupation", Locator: "#jobNm", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return text(req, func(r *FormSubmissionRequest) string { return r.Occupation })
			},
		},

		// -- Travel details (step 2) --
		{
			Key: "travel.flightNumber", Locator: "#fltNo", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return strings.ToUpper(strings.TrimSpace(req.FlightNumber)), nil
			},
		},
		{
			Key: "travel.arrivalDate", Locator: "#arvlDt", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return portalDate(req.ArrivalDate)
			},
		},
		{
			Key: "travel.arrivalPort", Kind: KindSelect,
			Locator:    `div.sel-port .ui-select-trigger`,
			OptionList: `div.sel-port ul.ui-select-options`,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return PortDisplay(req.ArrivalPort), nil
			},
		},
		{
			Key: "travel.departureCountry", Kind: KindSelect,
			Locator:    `div.sel-dprt .ui-select-trigger`,
			OptionList: `div.sel-dprt ul.ui-select-options`,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return CountryDisplay(req.DepartureCountry), nil
			},
		},
		{
			Key: "travel.address", Locator: "#stayAddr", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return text(req, func(r *FormSubmissionRequest) string { return r.AddressInCountry })
			},
		},
		{
			Key: "travel.phone", Locator: "#telNo", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return text(req, func(r *FormSubmissionRequest) string { return r.Phone })
			},
		},
		{
			Key: "travel.email", Locator: "#email", Kind: KindText,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return text(req, func(r *FormSubmissionRequest) string { return r.Email })
			},
		},

		// -- Accompanying family members (step 3, row scoped) --
		{
			Key: "family.familyName", RowScoped: true, Kind: KindText,
			Locator: `#fmlyList .fmly-row[data-row="{row}"] input.fmly-family-nm`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				fm, err := familyMember(req, row)
				if err != nil {
					return "", err
				}
				return strings.TrimSpace(fm.FamilyName), nil
			},
		},
		{
			Key: "family.givenName", RowScoped: true, Kind: KindText,
			Locator: `#fmlyList .fmly-row[data-row="{row}"] input.fmly-given-nm`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				fm, err := familyMember(req, row)
				if err != nil {
					return "", err
				}
				return strings.TrimSpace(fm.GivenName), nil
			},
		},
		{
			Key: "family.nationality", RowScoped: true, Kind: KindSelect,
			Locator:    `#fmlyList .fmly-row[data-row="{row}"] .ui-select-trigger`,
			OptionList: `#fmlyList .fmly-row[data-row="{row}"] ul.ui-select-options`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				fm, err := familyMember(req, row)
				if err != nil {
					return "", err
				}
				return CountryDisplay(fm.Nationality), nil
			},
		},
		{
			Key: "family.birthDate", RowScoped: true, Kind: KindText,
			Locator: `#fmlyList .fmly-row[data-row="{row}"] input.fmly-birth`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				fm, err := familyMember(req, row)
				if err != nil {
					return "", err
				}
				return portalDate(fm.BirthDate)
			},
		},
		{
			Key: "family.relationship", RowScoped: true, Kind: KindText,
			Locator: `#fmlyList .fmly-row[data-row="{row}"] input.fmly-rel`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				fm, err := familyMember(req, row)
				if err != nil {
					return "", err
				}
				return strings.TrimSpace(fm.Relationship), nil
			},
		},

		// -- Declaration questions (step 4, radio groups) --
		{
			Key: "declaration.currencyOverLimit", Locator: `input[name="crncyYn"]`, Kind: KindRadioGroup,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return boolValue(req.Declaration.CurrencyOverLimit)
			},
		},
		{
			Key: "declaration.restrictedItems", Locator: `input[name="rstrItemYn"]`, Kind: KindRadioGroup,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return boolValue(req.Declaration.RestrictedItems)
			},
		},
		{
			Key: "declaration.exceedsDutyFree", Locator: `input[name="dutyFreeYn"]`, Kind: KindRadioGroup,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return boolValue(req.Declaration.ExceedsDutyFree)
			},
		},
		{
			Key: "declaration.commercialGoods", Locator: `input[name="cmrcGoodsYn"]`, Kind: KindRadioGroup,
			Resolve: func(req *FormSubmissionRequest, _ int) (string, error) {
				return boolValue(req.Declaration.CommercialGoods)
			},
		},

		// -- Declared goods (step 4, row scoped) --
		{
			Key: "goods.description", RowScoped: true, Kind: KindText,
			Locator: `#goodsList .goods-row[data-row="{row}"] input.goods-desc`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				g, err := declaredGood(req, row)
				if err != nil {
					return "", err
				}
				return strings.TrimSpace(g.Description), nil
			},
		},
		{
			Key: "goods.quantity", RowScoped: true, Kind: KindText,
			Locator: `#goodsList .goods-row[data-row="{row}"] input.goods-qty`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				g, err := declaredGood(req, row)
				if err != nil {
					return "", err
				}
				return strconv.Itoa(g.Quantity), nil
			},
		},
		{
			Key: "goods.value", RowScoped: true, Kind: KindText,
			Locator: `#goodsList .goods-row[data-row="{row}"] input.goods-val`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				g, err := declaredGood(req, row)
				if err != nil {
					return "", err
				}
				return strings.TrimSpace(g.Value), nil
			},
		},
		{
			Key: "goods.currency", RowScoped: true, Kind: KindSelect,
			Locator:    `#goodsList .goods-row[data-row="{row}"] .ui-select-trigger`,
			OptionList: `#goodsList .goods-row[data-row="{row}"] ul.ui-select-options`,
			Resolve: func(req *FormSubmissionRequest, row int) (string, error) {
				g, err := declaredGood(req, row)
				if err != nil {
					return "", err
				}
				return strings.ToUpper(strings.TrimSpace(g.Currency)), nil
			},
		},
	}

	m := make(map[string]FieldMapping, len(fields))
	for _, f := range fields {
		if _, dup := m[f.Key]; dup {
			panic(fmt.Sprintf("duplicate field key %q in registry", f.Key))
		}
		m[f.Key] = f
	}
	return &Registry{fields: m}
}
