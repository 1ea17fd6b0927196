package extract

import (
	"regexp"
	"strings"

	"policy-scraper/pkg/models"
)

var currencyAmountRe = regexp.MustCompile(`^([$€£])([\d,]+)(?:\.(\d{1,2}))?`)

// NormalizeAmount puts a free-text monetary magnitude into canonical form:
// bare numbers gain a "$" prefix, currency amounts get exactly two decimal
// places, percentages pass through untouched. "$35" becomes "$35.00".
func NormalizeAmount(amount string) string {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return amount
	}

	if amount[0] >= '0' && amount[0] <= '9' && !strings.Contains(amount, "%") {
		amount = "$" + amount
	}

	m := currencyAmountRe.FindStringSubmatch(amount)
	if m == nil {
		return amount
	}
	decimal := m[3]
	switch len(decimal) {
	case 0:
		decimal = "00"
	case 1:
		decimal += "0"
	}
	return m[1] + m[2] + "." + decimal
}

// basisPhrases in matching priority; the more specific stay/person/room
// phrases win over the ubiquitous "per night".
var basisPhrases = []string{"per stay", "per person", "per room", "per night", "per day"}

// BasisFrom infers a charge basis from the text surrounding a match. It
// returns nil when no basis phrase co-occurs: an absent basis is reported as
// unknown, never guessed.
func BasisFrom(context string) *string {
	lower := strings.ToLower(context)
	for _, phrase := range basisPhrases {
		if strings.Contains(lower, phrase) {
			return models.StrPtr(phrase)
		}
	}
	return nil
}

// contextWindow returns the text around [start,end), clipped to the string.
func contextWindow(text string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
