package common

import (
	"strings"
)

// DefaultCountry is the locale hint sent to providers that support geo-biased search.
const DefaultCountry = "CA"

// MapCountryCode maps a configured country to the ISO code provider search tools expect
func MapCountryCode(country string) string {
	countryMap := map[string]string{
		"CA":     "CA",
		"CANADA": "CA",
		"US":     "US",
		"USA":    "US",
		"GB":     "GB",
		"UK":     "GB",
	}

	if code, exists := countryMap[strings.ToUpper(strings.TrimSpace(country))]; exists {
		return code
	}

	return DefaultCountry
}
