// File: internal/form/registry_test.go
package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTravelerFields(t *testing.T) {
	reg := NewRegistry()
	req := validRequest()

	tests := []struct {
		key     string
		locator string
		kind    Kind
		value   string
	}{
		{"traveler.familyName", "#familyNm", KindText, "HONG"},
		{"traveler.passportNumber", "#passportNo", KindText, "M12345678"},
		{"traveler.birthDate.year", "#birthYyyy", KindText, "1990"},
		{"traveler.birthDate.month", "#birthMm", KindText, "03"},
		{"traveler.birthDate.day", "#birthDd", KindText, "15"},
		{"traveler.gender", `input[name="sexCd"]`, KindRadioGroup, "M"},
		{"travel.arrivalDate", "#arvlDt", KindText, "2026.09.01"},
		{"travel.flightNumber", "#fltNo", KindText, "KE082"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			resolved, err := reg.Resolve(tc.key, req)
			require.NoError(t, err)
			assert.Equal(t, tc.locator, resolved.Locator)
			assert.Equal(t, tc.kind, resolved.Kind)
			assert.Equal(t, tc.value, resolved.Value)
		})
	}
}

func TestResolveSelectFieldsRenderDisplayValues(t *testing.T) {
	reg := NewRegistry()
	req := validRequest()

	nationality, err := reg.Resolve("traveler.nationality", req)
	require.NoError(t, err)
	assert.Equal(t, KindSelect, nationality.Kind)
	assert.Equal(t, "KR - KOREA, REPUBLIC OF", nationality.Value)
	assert.Equal(t, "div.sel-natn ul.ui-select-options", nationality.OptionList)

	port, err := reg.Resolve("travel.arrivalPort", req)
	require.NoError(t, err)
	assert.Equal(t, "ICN - INCHEON INTERNATIONAL AIRPORT (T1)", port.Value)
}

func TestResolveRowExpandsRowScopedLocators(t *testing.T) {
	reg := NewRegistry()
	req := validRequest()
	req.FamilyMembers = []FamilyMember{
		{FamilyName: "HONG", GivenName: "YOUNGHEE", Nationality: "JP", BirthDate: "1992-07-01", Relationship: "SPOUSE"},
		{FamilyName: "HONG", GivenName: "CHULSOO", Nationality: "KR", BirthDate: "2015-01-20", Relationship: "CHILD"},
	}

	first, err := reg.ResolveRow("family.givenName", req, 0)
	require.NoError(t, err)
	assert.Equal(t, `#fmlyList .fmly-row[data-row="0"] input.fmly-given-nm`, first.Locator)
	assert.Equal(t, "YOUNGHEE", first.Value)

	second, err := reg.ResolveRow("family.nationality", req, 1)
	require.NoError(t, err)
	assert.Equal(t, `#fmlyList .fmly-row[data-row="1"] ul.ui-select-options`, second.OptionList)
	assert.Equal(t, "KR - KOREA, REPUBLIC OF", second.Value)

	// A row index is never inherited across rows.
	assert.NotContains(t, second.Locator, `data-row="0"`)
}

func TestResolveRowOutOfRange(t *testing.T) {
	reg := NewRegistry()
	req := validRequest()

	_, err := reg.ResolveRow("family.givenName", req, 0)
	require.Error(t, err)
}

func TestResolveUnknownKey(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve("traveler.shoeSize", validRequest())
	require.ErrorIs(t, err, ErrUnknownFieldKey)
	assert.False(t, reg.Has("traveler.shoeSize"))
	assert.True(t, reg.Has("traveler.familyName"))
}

func TestResolveDeclarationFlags(t *testing.T) {
	reg := NewRegistry()
	req := validRequest()
	req.Declaration.CurrencyOverLimit = boolPtr(true)

	resolved, err := reg.Resolve("declaration.currencyOverLimit", req)
	require.NoError(t, err)
	assert.Equal(t, "Y", resolved.Value)
	assert.Equal(t, KindRadioGroup, resolved.Kind)

	req.Declaration.CommercialGoods = nil
	_, err = reg.Resolve("declaration.commercialGoods", req)
	require.Error(t, err, "unanswered flags must not resolve to a value")
}

func TestCountryAndPortDisplay(t *testing.T) {
	assert.Equal(t, "KR - KOREA, REPUBLIC OF", CountryDisplay("kr"))
	assert.Equal(t, "XQ", CountryDisplay("XQ"), "unknown codes degrade to the bare code")
	assert.Equal(t, "GMP - GIMPO INTERNATIONAL AIRPORT", PortDisplay("GMP"))
	assert.Equal(t, "ZZZ", PortDisplay("zzz"))
}
