package orchestrate

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-scraper/pkg/config"
	"policy-scraper/pkg/models"
	"policy-scraper/pkg/resolve"
)

// scriptedResolver panics for hotels on its panic list and otherwise returns
// an official-source record after an optional delay.
type scriptedResolver struct {
	panicOn map[string]bool
	delay   time.Duration
}

func (s *scriptedResolver) Resolve(_ context.Context, entry models.RosterEntry) *resolve.Outcome {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panicOn[entry.Name] {
		panic("extractor: index out of range")
	}
	res := officialResult(entry)
	return &resolve.Outcome{Record: res}
}

func officialResult(entry models.RosterEntry) *models.HotelRecord {
	rec := resolve.BuildRecord(entry, models.SourceOfficial, nil, nil, nil)
	rec.Sources.PolicyPage = models.StrPtr(entry.OfficialWebsite + "/policies")
	rec.Fees = []models.Fee{{Name: "Resort Fee", Amount: "$35.00"}}
	return rec
}

func testConfig(workers int) *config.AppConfig {
	return &config.AppConfig{NumWorkers: workers}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testRoster(n int) []models.RosterEntry {
	names := []string{"Alpine Lodge", "Cedar Inn", "Glacier House", "Lakeview Hotel", "Summit Suites"}
	entries := make([]models.RosterEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, models.RosterEntry{
			Name:            names[i%len(names)],
			Town:            "Banff",
			Region:          "Alberta",
			Country:         "Canada",
			Rank:            i + 1,
			OfficialWebsite: "https://hotel.example",
			MarketSegment:   "Midscale",
		})
	}
	return entries
}

func TestRun_PanickingHotelDoesNotAbortBatch(t *testing.T) {
	resolver := &scriptedResolver{panicOn: map[string]bool{"Glacier House": true}}
	o := New(testConfig(2), resolver, testLogger())

	outcomes, report := o.Run(context.Background(), testRoster(5))

	require.Len(t, outcomes, 5)
	assert.Equal(t, 4, report.Official)
	assert.Equal(t, 1, report.None)
	assert.Equal(t, 1, report.InternalErrors)
	assert.Equal(t, 5, report.Total())

	var errored *models.HotelRecord
	for _, out := range outcomes {
		if out.Record.Sources.DataSource == models.SourceNone {
			errored = out.Record
		}
	}
	require.NotNil(t, errored)
	assert.Equal(t, "Glacier House", errored.Name)
	require.NotNil(t, errored.ScrapingNotes)
	assert.Contains(t, *errored.ScrapingNotes, "internal error")
	assert.Empty(t, errored.Validate())
}

func TestRun_OutcomesSortedByCountryTownRank(t *testing.T) {
	entries := []models.RosterEntry{
		{Name: "B", Town: "Zermatt", Country: "Switzerland", Rank: 1, MarketSegment: "Luxury"},
		{Name: "C", Town: "Banff", Country: "Canada", Rank: 2, MarketSegment: "Luxury"},
		{Name: "A", Town: "Banff", Country: "Canada", Rank: 1, MarketSegment: "Luxury"},
	}
	o := New(testConfig(3), &scriptedResolver{}, testLogger())

	outcomes, _ := o.Run(context.Background(), entries)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "A", outcomes[0].Record.Name)
	assert.Equal(t, "C", outcomes[1].Record.Name)
	assert.Equal(t, "B", outcomes[2].Record.Name)
}

func TestRun_TimeoutStopsFeedingNewHotels(t *testing.T) {
	cfg := testConfig(1)
	cfg.GlobalRunTimeout = 10 * time.Millisecond
	resolver := &scriptedResolver{delay: 30 * time.Millisecond}
	o := New(cfg, resolver, testLogger())

	outcomes, _ := o.Run(context.Background(), testRoster(5))

	// hotels already in flight finish; the rest never start
	assert.NotEmpty(t, outcomes)
	assert.Less(t, len(outcomes), 5)
}

func TestRun_CancelledContextStopsFeeding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := New(testConfig(2), &scriptedResolver{}, testLogger())

	outcomes, report := o.Run(ctx, testRoster(5))
	assert.Empty(t, outcomes)
	assert.Equal(t, 0, report.Total())
}

func TestDryRun_ListsTargetsWithoutResolving(t *testing.T) {
	entries := []models.RosterEntry{
		{Name: "A", Town: "Banff", Country: "Canada", OfficialWebsite: "https://a.example", FallbackURL: "https://agg.example/a"},
		{Name: "B", Town: "Banff", Country: "Canada", FallbackURL: "https://agg.example/b", PromotionsURL: "https://b.example/offers"},
		{Name: "C", Town: "Banff", Country: "Canada"},
	}
	var neverCalled Resolver // nil: DryRun must not touch it
	o := New(testConfig(1), neverCalled, testLogger())

	targets := o.DryRun(entries)

	require.Len(t, targets, 5)
	assert.Contains(t, targets[0], "official site https://a.example")
	assert.Contains(t, targets[1], "fallback listing https://agg.example/a")
	assert.Contains(t, targets[4], "no sources")
}

func TestRunReport_Render(t *testing.T) {
	report := NewRunReport()
	report.Start()
	report.RecordOutcome(&models.HotelRecord{ID: "canada-banff-a", Town: "Banff",
		Sources: models.Sources{DataSource: models.SourceOfficial}})
	report.RecordOutcome(&models.HotelRecord{ID: "canada-banff-b", Town: "Banff",
		Sources: models.Sources{DataSource: models.SourceNone},
		ScrapingNotes: models.StrPtr("no official website in roster")})
	report.Finish()

	text := report.Render()
	assert.Contains(t, text, "Total Hotels Processed: 2")
	assert.Contains(t, text, "Official Source:        1")
	assert.Contains(t, text, "No Data:                1")
	assert.Contains(t, text, "canada-banff-b (Banff): no official website in roster")
	assert.Contains(t, text, report.RunID)
}
