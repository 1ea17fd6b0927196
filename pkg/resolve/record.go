package resolve

import (
	"strings"
	"time"

	"policy-scraper/pkg/extract"
	"policy-scraper/pkg/models"
	"policy-scraper/pkg/utils"
)

// BuildRecord assembles the exportable record for one hotel from its roster
// entry and the winning extraction result. res is nil for dataSource=none.
// Records are rebuilt whole every run, so all fields are set here and nowhere
// else.
func BuildRecord(entry models.RosterEntry, src models.DataSource, res *extract.Result, promotions []models.Promotion, notes []string) *models.HotelRecord {
	segment := entry.MarketSegment
	if segment == "" {
		segment = "Midscale"
	}

	record := &models.HotelRecord{
		ID:            utils.HotelID(entry.Country, entry.Town, entry.Name),
		Name:          entry.Name,
		Town:          entry.Town,
		Region:        entry.Region,
		Country:       entry.Country,
		MarketSegment: segment,
		Rank:          entry.Rank,
		Coordinates:   entry.Coordinates,
		Sources: models.Sources{
			OfficialWebsite: entry.OfficialWebsite,
			DataSource:      src,
		},
		Taxes:      []models.Tax{},
		Fees:       []models.Fee{},
		Promotions: promotions,
		ScrapedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if record.Promotions == nil {
		record.Promotions = []models.Promotion{}
	}

	if res != nil {
		record.Taxes = append(record.Taxes, res.Taxes...)
		record.Fees = append(record.Fees, res.Fees...)
		record.ExtraPerson = res.ExtraPerson
		record.DamageDeposit = res.DamageDeposit

		switch src {
		case models.SourceOfficial:
			record.Sources.PolicyPage = models.StrPtr(res.PageURL)
		case models.SourceFallback:
			record.Sources.FallbackURL = models.StrPtr(res.PageURL)
		}
	}

	if len(notes) > 0 {
		record.ScrapingNotes = models.StrPtr(strings.Join(notes, "; "))
	}

	return record
}

// ErrorRecord builds the dataSource=none record the orchestrator emits when
// a hotel's pipeline fails unexpectedly.
func ErrorRecord(entry models.RosterEntry, reason string) *models.HotelRecord {
	return BuildRecord(entry, models.SourceNone, nil, nil, []string{"internal error: " + reason})
}
