// Package discover locates the policy/terms page of a hotel's official site
// by scoring outbound links against a prioritized keyword list.
package discover

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/fetch"
	"policy-scraper/pkg/utils"
)

// MinScore is the confidence threshold: candidates scoring below it are not
// worth fetching and the site counts as having no policy page.
const MinScore = 40

// keywordTiers maps policy-page keywords to their priority score. Matching is
// substring against both link text and href.
var keywordTiers = []struct {
	keyword string
	score   int
}{
	{"policies", 100},
	{"policy", 100},
	{"terms-and-conditions", 80},
	{"terms and conditions", 80},
	{"conditions", 80},
	{"terms", 80},
	{"guest-info", 60},
	{"guest info", 60},
	{"guest information", 60},
	{"faq", 60},
	{"hotel-info", 50},
	{"hotel info", 50},
	{"rates", 40},
	{"fees", 40},
}

// navBonus rewards links living in footer/nav containers, where policy links
// conventionally sit.
const navBonus = 15

// wellKnownPaths are probed directly when link scanning finds nothing.
var wellKnownPaths = []string{
	"/policies", "/policy", "/terms", "/terms-and-conditions",
	"/hotel-policies", "/guest-information", "/faq",
}

// Candidate is a scored policy-page candidate.
type Candidate struct {
	URL    string
	Score  int
	Origin string // "homepage-link", "nav-subpage", or "direct-probe"
}

// PageFetcher is the fetch dependency; satisfied by *fetch.PageFetcher.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Discoverer finds the best policy-page candidate for a site.
type Discoverer struct {
	fetcher         PageFetcher
	exclusions      *fetch.ExclusionList
	disallowedPaths []*regexp.Regexp
	log             *logrus.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(fetcher PageFetcher, exclusions *fetch.ExclusionList, disallowedPaths []*regexp.Regexp, log *logrus.Logger) *Discoverer {
	return &Discoverer{
		fetcher:         fetcher,
		exclusions:      exclusions,
		disallowedPaths: disallowedPaths,
		log:             log,
	}
}

// Discover returns the highest-scoring policy-page candidate for siteRoot, or
// (nil, nil) when no candidate clears the confidence threshold. Fetch failures
// of the root page surface as errors; failures of probe/subpage fetches only
// narrow the search.
func (d *Discoverer) Discover(ctx context.Context, siteRoot string) (*Candidate, error) {
	siteLog := d.log.WithField("site", siteRoot)

	rootRes, err := d.fetcher.FetchPage(ctx, siteRoot)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(rootRes.FinalURL)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "URL %q: %v", rootRes.FinalURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rootRes.Body))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "HTML of %s: %v", siteRoot, err)
	}

	// Pass 1: score every same-site link on the home page
	candidates := d.scoreLinks(doc, base)
	if best := pickBest(candidates); best != nil {
		best.Origin = "homepage-link"
		siteLog.WithFields(logrus.Fields{"url": best.URL, "score": best.Score}).Debug("Policy page found on homepage")
		return best, nil
	}

	// Pass 2: one level down through top navigation
	if best := d.scanNavSubpages(ctx, doc, base, siteLog); best != nil {
		return best, nil
	}

	// Pass 3: probe well-known paths directly
	if best := d.probeWellKnownPaths(ctx, base, siteLog); best != nil {
		return best, nil
	}

	siteLog.Debug("No policy page candidate above threshold")
	return nil, nil
}

// scoreLinks walks all anchors in doc and returns in-scope candidates.
func (d *Discoverer) scoreLinks(doc *goquery.Document, base *url.URL) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		linkURL, err := base.Parse(href)
		if err != nil {
			return
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return
		}
		if !sameSite(linkURL.Hostname(), base.Hostname()) {
			return
		}
		if d.exclusions.MatchesHost(linkURL.Hostname()) {
			return
		}
		for _, pattern := range d.disallowedPaths {
			if pattern.MatchString(linkURL.Path) {
				return
			}
		}

		linkURL.Fragment = ""
		abs := linkURL.String()
		if seen[abs] {
			return
		}

		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		hrefLower := strings.ToLower(linkURL.Path)
		score := keywordScore(text, hrefLower)
		if score == 0 {
			return
		}
		if sel.ParentsFiltered("footer, nav, header").Length() > 0 {
			score += navBonus
		}

		seen[abs] = true
		out = append(out, Candidate{URL: abs, Score: score})
	})

	return out
}

// scanNavSubpages fetches up to three top-navigation links and scores the
// links found on each. Fetch failures just skip that subpage.
func (d *Discoverer) scanNavSubpages(ctx context.Context, doc *goquery.Document, base *url.URL, siteLog *logrus.Entry) *Candidate {
	var navLinks []string
	seen := make(map[string]bool)
	doc.Find("nav a[href], header a[href]").Each(func(_ int, sel *goquery.Selection) {
		if len(navLinks) >= 3 {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		linkURL, err := base.Parse(href)
		if err != nil || !sameSite(linkURL.Hostname(), base.Hostname()) {
			return
		}
		linkURL.Fragment = ""
		abs := linkURL.String()
		if seen[abs] || abs == base.String() {
			return
		}
		seen[abs] = true
		navLinks = append(navLinks, abs)
	})

	for _, navURL := range navLinks {
		res, err := d.fetcher.FetchPage(ctx, navURL)
		if err != nil {
			siteLog.Debugf("Nav subpage %s unreachable: %v", navURL, err)
			continue
		}
		subBase, err := url.Parse(res.FinalURL)
		if err != nil {
			continue
		}
		subDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
		if err != nil {
			continue
		}
		if best := pickBest(d.scoreLinks(subDoc, subBase)); best != nil {
			best.Origin = "nav-subpage"
			siteLog.WithFields(logrus.Fields{"url": best.URL, "via": navURL}).Debug("Policy page found via nav subpage")
			return best
		}
	}
	return nil
}

// probeWellKnownPaths tries conventional policy paths on the site root.
func (d *Discoverer) probeWellKnownPaths(ctx context.Context, base *url.URL, siteLog *logrus.Entry) *Candidate {
	for _, path := range wellKnownPaths {
		probe := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: path}
		res, err := d.fetcher.FetchPage(ctx, probe.String())
		if err != nil {
			continue
		}
		if res.StatusCode == 200 {
			siteLog.WithField("url", res.FinalURL).Debug("Policy page found by direct probe")
			return &Candidate{URL: res.FinalURL, Score: 100, Origin: "direct-probe"}
		}
	}
	return nil
}

// keywordScore returns the best tier score matching either text or href.
func keywordScore(text, href string) int {
	best := 0
	for _, tier := range keywordTiers {
		if strings.Contains(text, tier.keyword) || strings.Contains(href, tier.keyword) {
			if tier.score > best {
				best = tier.score
			}
		}
	}
	return best
}

// pickBest returns the highest-scoring candidate at or above MinScore.
// Ties break on URL for determinism.
func pickBest(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].URL < candidates[j].URL
	})
	if candidates[0].Score < MinScore {
		return nil
	}
	best := candidates[0]
	return &best
}

// sameSite treats www-prefixed and bare hostnames as the same site.
func sameSite(a, b string) bool {
	trim := func(h string) string { return strings.TrimPrefix(strings.ToLower(h), "www.") }
	return trim(a) == trim(b)
}
