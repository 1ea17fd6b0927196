// Package resolve decides, per hotel, which source the policy record comes
// from: the official site, the aggregator fallback, or neither. Fetch
// failures and empty extractions never escape this package as errors; they
// are folded into the record's provenance notes.
package resolve

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/discover"
	"policy-scraper/pkg/extract"
	"policy-scraper/pkg/fetch"
	"policy-scraper/pkg/models"
	"policy-scraper/pkg/utils"
)

// Discoverer finds a policy-page candidate on an official site.
type Discoverer interface {
	Discover(ctx context.Context, siteRoot string) (*discover.Candidate, error)
}

// Fetcher retrieves pages through the polite-fetch stack.
type Fetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Extractor parses fetched pages into policy facts.
type Extractor interface {
	Extract(body []byte, pageURL string) (*extract.Result, error)
	ExtractListing(body []byte, pageURL string) (*extract.Result, error)
	ExtractPromotions(body []byte, pageURL string, exclusions *fetch.ExclusionList) ([]models.Promotion, error)
}

// Enhancer is the optional LLM second pass; nil disables it.
type Enhancer interface {
	Enhance(ctx context.Context, res *extract.Result) bool
}

// Outcome is one resolved hotel: the finished record plus the raw page the
// facts came from, kept for markdown snapshots.
type Outcome struct {
	Record       *models.HotelRecord
	SnapshotHTML []byte
	SnapshotURL  string
}

// Resolver runs the official-then-fallback resolution sequence for one hotel.
type Resolver struct {
	fetcher    Fetcher
	discoverer Discoverer
	extractor  Extractor
	enhancer   Enhancer
	exclusions *fetch.ExclusionList
	log        *logrus.Logger
}

// NewResolver creates a Resolver. enhancer may be nil.
func NewResolver(fetcher Fetcher, discoverer Discoverer, extractor Extractor, enhancer Enhancer, exclusions *fetch.ExclusionList, log *logrus.Logger) *Resolver {
	return &Resolver{
		fetcher:    fetcher,
		discoverer: discoverer,
		extractor:  extractor,
		enhancer:   enhancer,
		exclusions: exclusions,
		log:        log,
	}
}

// Resolve produces the policy record for one roster entry. It always returns
// an outcome; when neither source yields data the record carries
// dataSource=none and notes explaining each miss.
func (r *Resolver) Resolve(ctx context.Context, entry models.RosterEntry) *Outcome {
	hotelLog := r.log.WithFields(logrus.Fields{
		"hotel": entry.Name,
		"town":  entry.Town,
	})

	var notes []string
	outcome := &Outcome{}

	official := r.tryOfficial(ctx, entry, hotelLog, &notes, outcome)

	if official != nil && !official.Empty() {
		hotelLog.WithField("page", official.PageURL).Info("Resolved from official site")
		outcome.Record = BuildRecord(entry, models.SourceOfficial, official, r.promotions(ctx, entry, hotelLog), notes)
		return outcome
	}

	if official != nil && official.Empty() {
		notes = append(notes, "no policy facts found on official policy page")
	}

	fallback := r.tryFallback(ctx, entry, hotelLog, &notes, outcome)
	if fallback != nil && !fallback.Empty() {
		hotelLog.WithField("page", fallback.PageURL).Info("Resolved from fallback listing")
		notes = append(notes, "data sourced from aggregator listing")
		outcome.Record = BuildRecord(entry, models.SourceFallback, fallback, r.promotions(ctx, entry, hotelLog), notes)
		return outcome
	}
	if fallback != nil && fallback.Empty() {
		notes = append(notes, "no policy facts found on fallback listing")
	}

	hotelLog.Info("No policy data from any source")
	outcome.Record = BuildRecord(entry, models.SourceNone, nil, r.promotions(ctx, entry, hotelLog), notes)
	return outcome
}

// tryOfficial runs discovery and extraction against the official site,
// returning nil when the site is missing, unreachable, or has no policy page.
func (r *Resolver) tryOfficial(ctx context.Context, entry models.RosterEntry, hotelLog *logrus.Entry, notes *[]string, outcome *Outcome) *extract.Result {
	if entry.OfficialWebsite == "" {
		*notes = append(*notes, "no official website in roster")
		return nil
	}

	cand, err := r.discoverer.Discover(ctx, entry.OfficialWebsite)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("official site fetch failed (%s)", utils.CategorizeError(err)))
		hotelLog.WithError(err).Warn("Official site unreachable")
		return nil
	}
	if cand == nil {
		*notes = append(*notes, "no policy page found on official site")
		return nil
	}

	page, err := r.fetcher.FetchPage(ctx, cand.URL)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("policy page fetch failed (%s)", utils.CategorizeError(err)))
		hotelLog.WithError(err).Warn("Policy page fetch failed")
		return nil
	}

	res, err := r.extractor.Extract(page.Body, page.FinalURL)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("policy page extraction failed (%s)", utils.CategorizeError(err)))
		hotelLog.WithError(err).Warn("Policy page extraction failed")
		return nil
	}

	outcome.SnapshotHTML = page.Body
	outcome.SnapshotURL = page.FinalURL
	r.enhance(ctx, res, notes)
	return res
}

// tryFallback extracts from the aggregator listing page.
func (r *Resolver) tryFallback(ctx context.Context, entry models.RosterEntry, hotelLog *logrus.Entry, notes *[]string, outcome *Outcome) *extract.Result {
	if entry.FallbackURL == "" {
		*notes = append(*notes, "no fallback listing in roster")
		return nil
	}

	page, err := r.fetcher.FetchPage(ctx, entry.FallbackURL)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("fallback listing fetch failed (%s)", utils.CategorizeError(err)))
		hotelLog.WithError(err).Warn("Fallback listing fetch failed")
		return nil
	}

	res, err := r.extractor.ExtractListing(page.Body, page.FinalURL)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("fallback listing extraction failed (%s)", utils.CategorizeError(err)))
		hotelLog.WithError(err).Warn("Fallback listing extraction failed")
		return nil
	}

	if outcome.SnapshotHTML == nil {
		outcome.SnapshotHTML = page.Body
		outcome.SnapshotURL = page.FinalURL
	}
	r.enhance(ctx, res, notes)
	return res
}

func (r *Resolver) enhance(ctx context.Context, res *extract.Result, notes *[]string) {
	if r.enhancer == nil {
		return
	}
	if r.enhancer.Enhance(ctx, res) {
		*notes = append(*notes, "data extracted using LLM parsing")
	}
}

// promotions fetches the hotel's dedicated offers page when the roster names
// one. Failures here never affect the policy outcome.
func (r *Resolver) promotions(ctx context.Context, entry models.RosterEntry, hotelLog *logrus.Entry) []models.Promotion {
	if entry.PromotionsURL == "" {
		return nil
	}

	page, err := r.fetcher.FetchPage(ctx, entry.PromotionsURL)
	if err != nil {
		hotelLog.WithError(err).Debug("Promotions page fetch failed")
		return nil
	}
	promos, err := r.extractor.ExtractPromotions(page.Body, page.FinalURL, r.exclusions)
	if err != nil {
		hotelLog.WithError(err).Debug("Promotions extraction failed")
		return nil
	}
	return promos
}
