package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$35", "$35.00"},
		{"$35.5", "$35.50"},
		{"$35.00", "$35.00"},
		{"25", "$25.00"},
		{"$1,250", "$1,250.00"},
		{"5%", "5%"},
		{"4.5%", "4.5%"},
		{"€100", "€100.00"},
		{" $40 ", "$40.00"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeAmount(tc.in), "input %q", tc.in)
	}
}

func TestBasisFrom(t *testing.T) {
	assert.Equal(t, "per night", *BasisFrom("a $35 fee charged per night"))
	assert.Equal(t, "per stay", *BasisFrom("deposit collected Per Stay"))
	assert.Equal(t, "per room", *BasisFrom("applies per room"))
	assert.Nil(t, BasisFrom("a $35 fee with no schedule mentioned"))
}

func TestBasisFrom_SpecificPhraseWins(t *testing.T) {
	// "per person" outranks the ubiquitous "per night"
	assert.Equal(t, "per person", *BasisFrom("charged per person, per night"))
}
