package beaconlib

import (
	"strings"

	"github.com/pariz/gountries"
)

var countryCodeQuery = gountries.New()

// NormalizeAlpha2Code returns a normalized 2-letter ISO3166 code.
// Normalized code is uppercased with some additional mapping. For
// example, some providers return ZZ as 'unknown' country. This function
// returns "" instead. Some databases still map Serbia to YU. This
// correctly maps YU to CS.
func NormalizeAlpha2Code(alpha2 string) string {
	alpha2 = strings.ToUpper(strings.TrimSpace(alpha2))

	if len(alpha2) != 2 {
		return ""
	}

	switch alpha2 {
	case "ZZ", "AP", "EU", "XX":
		return ""
	case "YU":
		return "CS"
	case "FX":
		return "FR"
	case "UK":
		return "GB"
	default:
		return alpha2
	}
}

// Alpha3ToAlpha2 maps 3-letter code of ISO3166 to 2-letter one. Unknown
// codes are mapped to empty string.
func Alpha3ToAlpha2(alpha3 string) string {
	return NormalizeAlpha2Code(countryCodeQuery.Alpha3ToAlpha2[strings.ToUpper(alpha3)])
}

// CountryName returns a common english name of the country for a given
// 2-letter code. If code is unknown, empty string is returned.
func CountryName(alpha2 string) string {
	alpha2 = NormalizeAlpha2Code(alpha2)
	if alpha2 == "" {
		return ""
	}

	country, ok := countryCodeQuery.Countries[alpha2]
	if !ok {
		return ""
	}

	return country.Name.BaseLang.Common
}

func normalizeLocation(loc Location) Location {
	loc.CountryCode = NormalizeAlpha2Code(loc.CountryCode)

	if loc.Country == "" {
		loc.Country = CountryName(loc.CountryCode)
	}

	loc.Country = strings.TrimSpace(loc.Country)
	loc.Region = strings.TrimSpace(loc.Region)
	loc.City = strings.TrimSpace(loc.City)

	return loc
}
