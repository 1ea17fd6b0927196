// Package extract turns fetched hotel pages into normalized policy facts.
// Extraction is keyword-anchored pattern matching over stripped page text: a
// line is emitted only when a name-like label and an amount-like token occur
// together, and anything ambiguous is dropped rather than guessed.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/models"
)

// Result holds everything extracted from a single page. All-empty results are
// a valid outcome, distinct from an extraction error.
type Result struct {
	PageURL       string
	Taxes         []models.Tax
	Fees          []models.Fee
	ExtraPerson   *models.ExtraPersonPolicy
	DamageDeposit *models.DamageDeposit
	RawText       string
}

// Empty reports whether no policy fact of any kind was found.
func (r *Result) Empty() bool {
	return len(r.Taxes) == 0 && len(r.Fees) == 0 && r.ExtraPerson == nil && r.DamageDeposit == nil
}

var taxPatterns = []*regexp.Regexp{
	// percentage taxes: "Tourism Levy: 4%"
	regexp.MustCompile(`(?i)(?P<name>[\w ]+(?:tax|levy|gst|vat|hst|pst))\s*[:\-]?\s*(?P<amount>\d+(?:\.\d+)?%)`),
	// fixed-amount taxes: "City Tax $5.00"
	regexp.MustCompile(`(?i)(?P<name>[\w ]+(?:tax|levy))\s*[:\-]?\s*(?P<amount>\$[\d,]+(?:\.\d{2})?)`),
	// named municipal levies, either form
	regexp.MustCompile(`(?i)(?P<name>(?:tourism|destination|city|lodging|occupancy)\s+(?:levy|tax|fee))\s*[:\-]?\s*(?P<amount>\d+(?:\.\d+)?%|\$[\d,]+(?:\.\d{2})?)`),
}

var feePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?P<name>(?:resort|amenity|facility|destination)\s+fee)\s*[:\-]?\s*(?P<amount>\$[\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?P<name>(?:self[- ]?park(?:ing)?|valet|parking))\s*[:\-]?\s*(?P<amount>\$[\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?P<name>pet\s+fee)\s*[:\-]?\s*(?P<amount>\$[\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?P<name>service\s+charge)\s*[:\-]?\s*(?P<amount>\d+(?:\.\d+)?%|\$[\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?P<name>(?:early\s+check[- ]?in|late\s+check[- ]?out)\s*(?:fee)?)\s*[:\-]?\s*(?P<amount>\$[\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?P<name>cleaning\s+fee)\s*[:\-]?\s*(?P<amount>\$[\d,]+(?:\.\d{2})?)`),
}

var (
	childrenFreeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)children\s+(?:under|up to)\s+(\d+)\s+(?:years?\s+)?(?:stay\s+)?free`),
		regexp.MustCompile(`(?i)(?:kids|children)\s+(\d+)\s+and\s+(?:under|younger)\s+(?:stay\s+)?free`),
	}
	extraAdultRe   = regexp.MustCompile(`(?i)(?:extra|additional)\s+(?:adult|person|bed)\s*[:\-]?\s*\$?([\d,]+(?:\.\d{2})?)`)
	extraChildRe   = regexp.MustCompile(`(?i)(?:extra|additional)\s+child\s*[:\-]?\s*\$?([\d,]+(?:\.\d{2})?)`)
	maxOccupancyRe = regexp.MustCompile(`(?i)(?:maximum|max)\s+occupancy\s*[:\-]?\s*(\d+(?:\s+(?:guests|persons|people))?)`)
)

var depositPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:damage|security|incidental)\s+deposit\s*(?:of)?\s*[:\-]?\s*\$?([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:pre[- ]?authorization|credit\s+card\s+hold)\s*(?:of)?\s*\$?([\d,]+(?:\.\d{2})?)`),
}

var refundTimelineRe = regexp.MustCompile(`(?i)(?:refund|release)(?:ed)?\s+(?:within\s+)?(\d+)\s*(?:business\s+)?days?`)

// feeIncludeKeywords are amenities commonly bundled into resort/amenity fees.
var feeIncludeKeywords = []string{
	"wifi", "wi-fi", "internet", "pool", "fitness", "gym",
	"breakfast", "parking", "spa", "shuttle", "newspaper",
	"coffee", "water", "resort credit",
}

// Extractor applies the policy rule tables to page text. It is stateless and
// safe for concurrent use; identical input yields identical output.
type Extractor struct {
	log *logrus.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(log *logrus.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract parses an official-site policy page.
func (e *Extractor) Extract(body []byte, pageURL string) (*Result, error) {
	text, err := TextContent(body)
	if err != nil {
		return nil, err
	}
	return e.fromText(text, pageURL), nil
}

// ExtractListing parses an aggregator listing page, scoped to its policy
// sections.
func (e *Extractor) ExtractListing(body []byte, pageURL string) (*Result, error) {
	text, err := ListingPolicyText(body)
	if err != nil {
		return nil, err
	}
	return e.fromText(text, pageURL), nil
}

func (e *Extractor) fromText(text, pageURL string) *Result {
	res := &Result{
		PageURL:       pageURL,
		Taxes:         e.extractTaxes(text),
		Fees:          e.extractFees(text),
		ExtraPerson:   e.extractExtraPerson(text),
		DamageDeposit: e.extractDamageDeposit(text),
		RawText:       text,
	}
	e.log.WithFields(logrus.Fields{
		"page":  pageURL,
		"taxes": len(res.Taxes),
		"fees":  len(res.Fees),
		"empty": res.Empty(),
	}).Debug("Extraction complete")
	return res
}

func (e *Extractor) extractTaxes(text string) []models.Tax {
	var taxes []models.Tax
	seen := make(map[string]bool)

	for _, pattern := range taxPatterns {
		nameIdx := pattern.SubexpIndex("name") * 2
		amountIdx := pattern.SubexpIndex("amount") * 2
		for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
			name := cleanName(text[m[nameIdx]:m[nameIdx+1]])
			amount := NormalizeAmount(text[m[amountIdx]:m[amountIdx+1]])
			if name == "" || amount == "" {
				continue
			}
			key := dedupeKey(name, amount)
			if seen[key] {
				continue
			}
			seen[key] = true
			taxes = append(taxes, models.Tax{
				Name:   name,
				Amount: amount,
				Basis:  BasisFrom(contextWindow(text, m[0], m[1], 50)),
			})
		}
	}
	return taxes
}

func (e *Extractor) extractFees(text string) []models.Fee {
	var fees []models.Fee
	seen := make(map[string]bool)

	for _, pattern := range feePatterns {
		nameIdx := pattern.SubexpIndex("name") * 2
		amountIdx := pattern.SubexpIndex("amount") * 2
		for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
			name := cleanName(text[m[nameIdx]:m[nameIdx+1]])
			amount := NormalizeAmount(text[m[amountIdx]:m[amountIdx+1]])
			if name == "" || amount == "" {
				continue
			}
			key := dedupeKey(name, amount)
			if seen[key] {
				continue
			}
			seen[key] = true

			fee := models.Fee{
				Name:   name,
				Amount: amount,
				Basis:  BasisFrom(contextWindow(text, m[0], m[1], 50)),
			}
			lowered := strings.ToLower(name)
			if strings.Contains(lowered, "resort") || strings.Contains(lowered, "amenity") {
				fee.Includes = extractFeeIncludes(text, m[0])
			}
			fees = append(fees, fee)
		}
	}
	return fees
}

// extractFeeIncludes scans the text following a resort/amenity fee mention
// for bundled amenities.
func extractFeeIncludes(text string, position int) []string {
	end := position + 500
	if end > len(text) {
		end = len(text)
	}
	context := strings.ToLower(text[position:end])

	var found []string
	for _, keyword := range feeIncludeKeywords {
		if strings.Contains(context, keyword) {
			found = append(found, titleCase(strings.ReplaceAll(keyword, "-", " ")))
		}
	}
	return found
}

func (e *Extractor) extractExtraPerson(text string) *models.ExtraPersonPolicy {
	policy := &models.ExtraPersonPolicy{}
	hasData := false

	for _, pattern := range childrenFreeRes {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if age := parseInt(m[1]); age != nil {
				policy.ChildrenFreeAge = age
				hasData = true
				break
			}
		}
	}

	if m := extraAdultRe.FindStringSubmatchIndex(text); m != nil {
		policy.AdultCharge = &models.Charge{
			Amount: NormalizeAmount(text[m[2]:m[3]]),
			Basis:  BasisFrom(contextWindow(text, m[0], m[1], 50)),
		}
		hasData = true
	}
	if m := extraChildRe.FindStringSubmatchIndex(text); m != nil {
		policy.ChildCharge = &models.Charge{
			Amount: NormalizeAmount(text[m[2]:m[3]]),
			Basis:  BasisFrom(contextWindow(text, m[0], m[1], 50)),
		}
		hasData = true
	}

	if m := maxOccupancyRe.FindStringSubmatch(text); m != nil {
		policy.MaxOccupancy = models.StrPtr(strings.TrimSpace(m[1]))
		hasData = true
	}

	if !hasData {
		return nil
	}
	return policy
}

func (e *Extractor) extractDamageDeposit(text string) *models.DamageDeposit {
	for _, pattern := range depositPatterns {
		m := pattern.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		amount := NormalizeAmount(text[m[2]:m[3]])
		context := strings.ToLower(contextWindow(text, m[0], m[1], 100))

		deposit := &models.DamageDeposit{
			Amount: amount,
			Basis:  BasisFrom(context),
		}

		if strings.Contains(context, "credit card") || strings.Contains(context, "pre-authorization") {
			deposit.Method = models.StrPtr("Credit card pre-authorization")
		} else if strings.Contains(context, "cash") {
			deposit.Method = models.StrPtr("Cash deposit")
		}

		if rm := refundTimelineRe.FindStringSubmatch(context); rm != nil {
			deposit.RefundTimeline = models.StrPtr("Within " + rm[1] + " days")
		}

		return deposit
	}
	return nil
}

// cleanName normalizes a captured label: keeps only the final line of a
// multi-line capture, collapses whitespace, and title-cases the words.
func cleanName(name string) string {
	if i := strings.LastIndexByte(name, '\n'); i >= 0 {
		name = name[i+1:]
	}
	return titleCase(name)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func dedupeKey(name, amount string) string {
	return strings.ToLower(name) + "\x00" + amount
}

func parseInt(s string) *int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
		n = n*10 + int(r-'0')
	}
	return &n
}
