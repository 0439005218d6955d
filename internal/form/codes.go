// File: internal/form/codes.go
package form

import "strings"

// countryNames maps ISO country codes to the display names the portal renders
// in its nationality and departure-country widgets. Only codes the portal is
// known to list are included; unknown codes fall through to the bare code so
// matching degrades to the code-prefix strategy.
var countryNames = map[string]string{
	"KR": "KOREA, REPUBLIC OF",
	"JP": "JAPAN",
	"CN": "CHINA",
	"TW": "TAIWAN",
	"HK": "HONG KONG",
	"SG": "SINGAPORE",
	"TH": "THAILAND",
	"VN": "VIET NAM",
	"PH": "PHILIPPINES",
	"MY": "MALAYSIA",
	"ID": "INDONESIA",
	"IN": "INDIA",
	"US": "UNITED STATES",
	"CA": "CANADA",
	"MX": "MEXICO",
	"BR": "BRAZIL",
	"GB": "UNITED KINGDOM",
	"FR": "FRANCE",
	"DE": "GERMANY",
	"IT": "ITALY",
	"ES": "SPAIN",
	"NL": "NETHERLANDS",
	"RU": "RUSSIAN FEDERATION",
	"AU": "AUSTRALIA",
	"NZ": "NEW ZEALAND",
	"AE": "UNITED ARAB EMIRATES",
}

// portNames maps arrival port codes to the display names in the arrival-port widget.
var portNames = map[string]string{
	"ICN": "INCHEON INTERNATIONAL AIRPORT (T1)",
	"IC2": "INCHEON INTERNATIONAL AIRPORT (T2)",
	"GMP": "GIMPO INTERNATIONAL AIRPORT",
	"PUS": "GIMHAE INTERNATIONAL AIRPORT",
	"CJU": "JEJU INTERNATIONAL AIRPORT",
	"TAE": "DAEGU INTERNATIONAL AIRPORT",
	"CJJ": "CHEONGJU INTERNATIONAL AIRPORT",
	"MWX": "MUAN INTERNATIONAL AIRPORT",
	"YNY": "YANGYANG INTERNATIONAL AIRPORT",
	"PTK": "PYEONGTAEK PORT",
	"INP": "INCHEON PORT",
	"BUP": "BUSAN PORT",
}

// CountryDisplay composes the "CODE - NAME" display string the portal's country
// widgets render for a coded value.
func CountryDisplay(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := countryNames[code]; ok {
		return code + " - " + name
	}
	return code
}

// PortDisplay composes the "CODE - NAME" display string for an arrival port code.
func PortDisplay(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := portNames[code]; ok {
		return code + " - " + name
	}
	return code
}
