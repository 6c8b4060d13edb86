package utils

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is assumed for numbers without a country prefix
const DefaultPhoneRegion = "US"

// PhoneComponents represents the parsed components of a phone number
type PhoneComponents struct {
	CountryCode string `json:"countryCode"`
	AreaCode    string `json:"areaCode"`
	Number      string `json:"number"`
	E164        string `json:"e164"`
}

func parse(phoneString string) (*phonenumbers.PhoneNumber, error) {
	clean := strings.TrimSpace(phoneString)
	if clean == "" {
		return nil, fmt.Errorf("empty phone number")
	}
	num, err := phonenumbers.Parse(clean, DefaultPhoneRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}
	return num, nil
}

// ParsePhoneNumber parses a phone number string and returns its components
func ParsePhoneNumber(phoneString string) (*PhoneComponents, error) {
	num, err := parse(phoneString)
	if err != nil {
		return nil, err
	}
	if !phonenumbers.IsValidNumber(num) {
		return nil, fmt.Errorf("invalid phone number: %s", phoneString)
	}

	national := phonenumbers.GetNationalSignificantNumber(num)
	components := &PhoneComponents{
		CountryCode: fmt.Sprintf("%d", num.GetCountryCode()),
		Number:      national,
		E164:        phonenumbers.Format(num, phonenumbers.E164),
	}
	if n := phonenumbers.GetLengthOfGeographicalAreaCode(num); n > 0 && n < len(national) {
		components.AreaCode = national[:n]
		components.Number = national[n:]
	}
	return components, nil
}

// IsPossiblePhone reports whether the string has a plausible length for a number in the
// default region (or the region of its explicit country prefix)
func IsPossiblePhone(phoneString string) bool {
	num, err := parse(phoneString)
	if err != nil {
		return false
	}
	return phonenumbers.IsPossibleNumber(num)
}

// NormalizePhone formats a valid number as E.164 and returns the input unchanged otherwise
func NormalizePhone(phoneString string) string {
	components, err := ParsePhoneNumber(phoneString)
	if err != nil {
		return strings.TrimSpace(phoneString)
	}
	return components.E164
}
