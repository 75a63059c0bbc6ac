// Package phone normalizes contact numbers captured at the front desk.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Normalizer formats phone numbers as E.164 using a default region for
// numbers written without a country code.
type Normalizer struct {
	region string
}

// NewNormalizer creates a normalizer for the given ISO 3166 region, e.g. "IN".
func NewNormalizer(region string) *Normalizer {
	return &Normalizer{region: strings.ToUpper(strings.TrimSpace(region))}
}

// Normalize returns the E.164 form of raw. Input that does not parse to a
// valid number is returned trimmed but otherwise untouched.
func (n *Normalizer) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
