package resolve

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-scraper/pkg/discover"
	"policy-scraper/pkg/extract"
	"policy-scraper/pkg/fetch"
	"policy-scraper/pkg/models"
)

type fakeFetcher struct {
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

func (f *fakeFetcher) FetchPage(_ context.Context, rawURL string) (*fetch.Result, error) {
	f.fetched = append(f.fetched, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("unexpected fetch: " + rawURL)
	}
	return &fetch.Result{RequestURL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

type fakeDiscoverer struct {
	cand *discover.Candidate
	err  error
}

func (d *fakeDiscoverer) Discover(context.Context, string) (*discover.Candidate, error) {
	return d.cand, d.err
}

func testResolver(f *fakeFetcher, d Discoverer) *Resolver {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewResolver(f, d, extract.NewExtractor(log), nil, fetch.NewExclusionList([]string{"be.synxis.com"}), log)
}

func banffEntry() models.RosterEntry {
	return models.RosterEntry{
		Name:            "Fairmont Banff Springs",
		Town:            "Banff",
		Region:          "Alberta",
		Country:         "Canada",
		Rank:            1,
		OfficialWebsite: "https://hotel.example",
		FallbackURL:     "https://aggregator.example/hotel/123",
		MarketSegment:   "Luxury",
	}
}

func TestResolve_OfficialSufficient(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://hotel.example/policies": `<html><body><p>Resort Fee $35 per night.</p></body></html>`,
	}}
	d := &fakeDiscoverer{cand: &discover.Candidate{URL: "https://hotel.example/policies", Score: 100}}

	outcome := testResolver(f, d).Resolve(context.Background(), banffEntry())
	rec := outcome.Record
	require.NotNil(t, rec)

	assert.Equal(t, models.SourceOfficial, rec.Sources.DataSource)
	require.NotNil(t, rec.Sources.PolicyPage)
	assert.Equal(t, "https://hotel.example/policies", *rec.Sources.PolicyPage)
	assert.Nil(t, rec.Sources.FallbackURL)

	require.Len(t, rec.Fees, 1)
	assert.Equal(t, "Resort Fee", rec.Fees[0].Name)
	assert.Equal(t, "$35.00", rec.Fees[0].Amount)
	require.NotNil(t, rec.Fees[0].Basis)
	assert.Equal(t, "per night", *rec.Fees[0].Basis)

	// fallback never attempted
	assert.NotContains(t, f.fetched, "https://aggregator.example/hotel/123")
	assert.Equal(t, "canada-banff-fairmont-banff-springs", rec.ID)
	assert.Empty(t, rec.Validate())
}

func TestResolve_OfficialTimeoutFallsBack(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://aggregator.example/hotel/123": `<html><body>
			<div class="fine-print"><p>A security deposit of $200 is required. Payment by credit card.</p></div>
		</body></html>`,
	}}
	d := &fakeDiscoverer{err: errors.New(`Get "https://hotel.example": request timeout`)}

	outcome := testResolver(f, d).Resolve(context.Background(), banffEntry())
	rec := outcome.Record

	assert.Equal(t, models.SourceFallback, rec.Sources.DataSource)
	assert.Nil(t, rec.Sources.PolicyPage)
	require.NotNil(t, rec.Sources.FallbackURL)
	assert.Equal(t, "https://aggregator.example/hotel/123", *rec.Sources.FallbackURL)

	require.NotNil(t, rec.DamageDeposit)
	assert.Equal(t, "$200.00", rec.DamageDeposit.Amount)

	require.NotNil(t, rec.ScrapingNotes)
	assert.Contains(t, *rec.ScrapingNotes, "Timeout")
	assert.Contains(t, *rec.ScrapingNotes, "aggregator listing")
	assert.Empty(t, rec.Validate())
}

func TestResolve_BothEmptyYieldsNone(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://hotel.example/policies":       `<html><body><p>Welcome!</p></body></html>`,
		"https://aggregator.example/hotel/123": `<html><body><p>Lovely rooms.</p></body></html>`,
	}}
	d := &fakeDiscoverer{cand: &discover.Candidate{URL: "https://hotel.example/policies", Score: 100}}

	outcome := testResolver(f, d).Resolve(context.Background(), banffEntry())
	rec := outcome.Record

	assert.Equal(t, models.SourceNone, rec.Sources.DataSource)
	assert.False(t, rec.HasPolicyFacts())
	require.NotNil(t, rec.ScrapingNotes)
	assert.Contains(t, *rec.ScrapingNotes, "official policy page")
	assert.Contains(t, *rec.ScrapingNotes, "fallback listing")
	assert.Empty(t, rec.Validate())
}

func TestResolve_NoPolicyPageFound(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://aggregator.example/hotel/123": `<html><body>
			<div class="house-rules"><p>Pet fee $30 per stay.</p></div>
		</body></html>`,
	}}
	d := &fakeDiscoverer{} // no candidate

	outcome := testResolver(f, d).Resolve(context.Background(), banffEntry())
	rec := outcome.Record

	assert.Equal(t, models.SourceFallback, rec.Sources.DataSource)
	require.Len(t, rec.Fees, 1)
	require.NotNil(t, rec.ScrapingNotes)
	assert.Contains(t, *rec.ScrapingNotes, "no policy page found on official site")
}

func TestResolve_NoSourcesInRoster(t *testing.T) {
	entry := banffEntry()
	entry.OfficialWebsite = ""
	entry.FallbackURL = ""

	outcome := testResolver(&fakeFetcher{}, &fakeDiscoverer{}).Resolve(context.Background(), entry)
	rec := outcome.Record

	assert.Equal(t, models.SourceNone, rec.Sources.DataSource)
	require.NotNil(t, rec.ScrapingNotes)
	assert.Contains(t, *rec.ScrapingNotes, "no official website")
	assert.Contains(t, *rec.ScrapingNotes, "no fallback listing")
}

func TestResolve_PromotionsFromDedicatedPage(t *testing.T) {
	entry := banffEntry()
	entry.PromotionsURL = "https://hotel.example/special-offers"

	f := &fakeFetcher{pages: map[string]string{
		"https://hotel.example/policies": `<html><body><p>Resort Fee $35 per night.</p></body></html>`,
		"https://hotel.example/special-offers": `<html><head><title>Special Offers</title></head><body>
			<div class="offer-card"><h3>Winter Deal</h3><p>Save 20% on three nights.</p></div>
		</body></html>`,
	}}
	d := &fakeDiscoverer{cand: &discover.Candidate{URL: "https://hotel.example/policies", Score: 100}}

	outcome := testResolver(f, d).Resolve(context.Background(), entry)
	rec := outcome.Record

	require.Len(t, rec.Promotions, 1)
	assert.Equal(t, "Winter Deal", rec.Promotions[0].Name)
	assert.Equal(t, "https://hotel.example/special-offers", rec.Promotions[0].SourceURL)
}

func TestResolve_PromotionsNeverFromExcludedHost(t *testing.T) {
	entry := banffEntry()
	entry.PromotionsURL = "https://be.synxis.com/offers?hotel=123"

	f := &fakeFetcher{pages: map[string]string{
		"https://hotel.example/policies": `<html><body><p>Resort Fee $35 per night.</p></body></html>`,
		"https://be.synxis.com/offers?hotel=123": `<html><head><title>Special Offers</title></head><body>
			<div class="offer-card"><h3>Engine Offer</h3><p>10% off.</p></div>
		</body></html>`,
	}}
	d := &fakeDiscoverer{cand: &discover.Candidate{URL: "https://hotel.example/policies", Score: 100}}

	outcome := testResolver(f, d).Resolve(context.Background(), entry)
	assert.Empty(t, outcome.Record.Promotions)
}

func TestResolve_SnapshotCarriesWinningPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://hotel.example/policies": `<html><body><p>Resort Fee $35 per night.</p></body></html>`,
	}}
	d := &fakeDiscoverer{cand: &discover.Candidate{URL: "https://hotel.example/policies", Score: 100}}

	outcome := testResolver(f, d).Resolve(context.Background(), banffEntry())
	assert.Equal(t, "https://hotel.example/policies", outcome.SnapshotURL)
	assert.NotEmpty(t, outcome.SnapshotHTML)
}

func TestErrorRecord(t *testing.T) {
	rec := ErrorRecord(banffEntry(), "extractor panic: index out of range")
	assert.Equal(t, models.SourceNone, rec.Sources.DataSource)
	require.NotNil(t, rec.ScrapingNotes)
	assert.Contains(t, *rec.ScrapingNotes, "internal error")
	assert.Empty(t, rec.Validate())
}
