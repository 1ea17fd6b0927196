package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() *HotelRecord {
	page := "https://www.rimrockresort.com/policies"
	return &HotelRecord{
		ID:            "canada-banff-rimrock-resort-hotel",
		Name:          "Rimrock Resort Hotel",
		Town:          "Banff",
		Region:        "Alberta",
		Country:       "Canada",
		MarketSegment: "Upscale",
		Rank:          2,
		Sources: Sources{
			OfficialWebsite: "https://www.rimrockresort.com/",
			PolicyPage:      &page,
			DataSource:      SourceOfficial,
		},
		Taxes:      []Tax{{Name: "Tourism Levy", Amount: "4%"}},
		Fees:       []Fee{},
		Promotions: []Promotion{},
		ScrapedAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestHotelRecord_ValidRecordHasNoProblems(t *testing.T) {
	assert.Empty(t, validRecord().Validate())
}

func TestHotelRecord_ValidateCatchesMissingIdentity(t *testing.T) {
	rec := validRecord()
	rec.ID = ""
	rec.Town = ""

	problems := rec.Validate()
	assert.Contains(t, problems, "missing id")
	assert.Contains(t, problems, "missing town")
}

func TestHotelRecord_ValidateRejectsUnknownSegment(t *testing.T) {
	rec := validRecord()
	rec.MarketSegment = "Palatial"

	problems := rec.Validate()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "invalid market segment")
}

func TestHotelRecord_OfficialSourceRequiresPolicyPage(t *testing.T) {
	rec := validRecord()
	rec.Sources.PolicyPage = nil

	problems := rec.Validate()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "policyPage")
}

func TestHotelRecord_NoneSourceMustBeEmptyAndAnnotated(t *testing.T) {
	rec := validRecord()
	rec.Sources.DataSource = SourceNone
	rec.Sources.PolicyPage = nil

	problems := rec.Validate()
	assert.Contains(t, problems, "dataSource=none but policy facts are populated")
	assert.Contains(t, problems, "dataSource=none requires scrapingNotes")

	rec.Taxes = nil
	rec.ScrapingNotes = StrPtr("no policy facts found on official policy page")
	assert.Empty(t, rec.Validate())
}

func TestHotelRecord_HasPolicyFacts(t *testing.T) {
	rec := validRecord()
	assert.True(t, rec.HasPolicyFacts())

	rec.Taxes = nil
	assert.False(t, rec.HasPolicyFacts())

	rec.DamageDeposit = &DamageDeposit{Amount: "$200.00"}
	assert.True(t, rec.HasPolicyFacts())
}

// Absent optional fields must serialize as explicit nulls, not disappear.
func TestHotelRecord_NullsAreExplicitInJSON(t *testing.T) {
	rec := validRecord()
	rec.Taxes[0].Basis = nil

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"basis":null`)
	assert.Contains(t, s, `"extraPersonPolicy":null`)
	assert.Contains(t, s, `"damageDeposit":null`)
	assert.Contains(t, s, `"scrapingNotes":null`)
	assert.False(t, strings.Contains(s, `"includes"`), "empty includes should be omitted")
}

func TestHotelRecord_ValidateFlagsIncompleteLines(t *testing.T) {
	rec := validRecord()
	rec.Taxes = append(rec.Taxes, Tax{Name: "Orphan Tax"})
	rec.Fees = append(rec.Fees, Fee{Amount: "$35.00"})
	rec.Promotions = append(rec.Promotions, Promotion{Name: "Ski Free"})

	problems := rec.Validate()
	assert.Contains(t, problems, "tax 1 missing name or amount")
	assert.Contains(t, problems, "fee 0 missing name or amount")
	assert.Contains(t, problems, "promotion 0 missing sourceUrl")
}
