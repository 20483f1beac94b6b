// Package contact normalizes phone numbers for carrier payloads.
package contact

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Phone is a phone number split the way carrier APIs expect it.
type Phone struct {
	Number      string // national significant number
	CountryCode string // calling code without "+"
	Extension   string
}

// IsZero reports whether p carries no number.
func (p Phone) IsZero() bool {
	return p.Number == ""
}

// E164 formats p as "+<country><number>".
func (p Phone) E164() string {
	if p.IsZero() {
		return ""
	}
	return "+" + p.CountryCode + p.Number
}

// Normalizer parses raw phone numbers and falls back to the organisation
// number when a raw value is unusable.
type Normalizer struct {
	fallback Phone
}

// NewNormalizer creates a normalizer with the given fallback contact.
func NewNormalizer(fallback Phone) *Normalizer {
	return &Normalizer{fallback: fallback}
}

// Fallback returns the configured fallback number.
func (n *Normalizer) Fallback() Phone {
	return n.fallback
}

// Normalize parses raw with country as the default region. Empty,
// unparseable or invalid numbers yield the fallback.
func (n *Normalizer) Normalize(raw, country string) Phone {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return n.fallback
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(country))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return n.fallback
	}

	return Phone{
		Number:      phonenumbers.GetNationalSignificantNumber(num),
		CountryCode: strconv.Itoa(int(num.GetCountryCode())),
		Extension:   num.GetExtension(),
	}
}
