package contact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/fulfillment/pkg/contact"
)

var orgPhone = contact.Phone{Number: "201234567", CountryCode: "31", Extension: "12"}

func TestNormalize_Valid(t *testing.T) {
	n := contact.NewNormalizer(orgPhone)

	tests := []struct {
		name    string
		raw     string
		country string
		want    contact.Phone
	}{
		{"national NL", "010 123 4567", "NL", contact.Phone{Number: "101234567", CountryCode: "31"}},
		{"international DE", "+49 30 123456", "NL", contact.Phone{Number: "30123456", CountryCode: "49"}},
		{"lowercase region", "0612345678", "nl", contact.Phone{Number: "612345678", CountryCode: "31"}},
		{"extension", "+1 650-253-0000 ext. 123", "US", contact.Phone{Number: "6502530000", CountryCode: "1", Extension: "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.raw, tt.country))
		})
	}
}

func TestNormalize_Fallback(t *testing.T) {
	n := contact.NewNormalizer(orgPhone)

	for _, raw := range []string{"", "   ", "not a number", "123", "+99 1"} {
		t.Run(raw, func(t *testing.T) {
			got := n.Normalize(raw, "NL")
			assert.Equal(t, orgPhone, got)
			assert.False(t, got.IsZero())
		})
	}
}

func TestPhone_E164(t *testing.T) {
	assert.Equal(t, "+31201234567", orgPhone.E164())
	assert.Equal(t, "", contact.Phone{}.E164())
}
