package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/storage"
	"policy-scraper/pkg/utils"
)

// maxBodyBytes caps how much of a page body is read. Policy pages are text;
// anything past this is not worth extracting from.
const maxBodyBytes = 5 << 20

// Result is a completed page fetch.
type Result struct {
	RequestURL string
	FinalURL   string // after redirects
	StatusCode int
	Body       []byte
	FromCache  bool
}

// PageFetcher is the full fetch pipeline for one URL: exclusion check, page
// cache lookup, robots.txt check, identity rotation, rate-limited retrying
// GET, cache fill. It is the only component that touches the network.
type PageFetcher struct {
	fetcher    *Fetcher
	robots     *RobotsHandler
	identities *IdentityPool
	exclusions *ExclusionList
	cache      storage.PageCache // may be nil
	log        *logrus.Logger
}

// NewPageFetcher creates a PageFetcher. cache may be nil to disable caching.
func NewPageFetcher(
	fetcher *Fetcher,
	robots *RobotsHandler,
	identities *IdentityPool,
	exclusions *ExclusionList,
	cache storage.PageCache,
	log *logrus.Logger,
) *PageFetcher {
	return &PageFetcher{
		fetcher:    fetcher,
		robots:     robots,
		identities: identities,
		exclusions: exclusions,
		cache:      cache,
		log:        log,
	}
}

// FetchPage fetches rawURL and returns its body. Refusals (exclusion list,
// robots.txt) and exhausted retries come back as categorized errors; the
// caller folds them into provenance notes.
func (pf *PageFetcher) FetchPage(ctx context.Context, rawURL string) (*Result, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "URL %q: %v", rawURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, utils.WrapErrorf(utils.ErrParsing, "URL %q: unsupported scheme %q", rawURL, target.Scheme)
	}

	pageLog := pf.log.WithField("url", rawURL)

	if pf.exclusions.MatchesHost(target.Hostname()) {
		pageLog.Debug("Refusing fetch: host on exclusion list")
		return nil, fmt.Errorf("%w: %s", utils.ErrExcludedDomain, target.Hostname())
	}

	if pf.cache != nil {
		cached, err := pf.cache.Get(rawURL)
		if err != nil {
			pageLog.Warnf("Page cache read failed, fetching live: %v", err)
		} else if cached != nil {
			pageLog.WithField("fetched_at", cached.FetchedAt).Debug("Serving page from cache")
			return &Result{
				RequestURL: rawURL,
				FinalURL:   cached.FinalURL,
				StatusCode: cached.StatusCode,
				Body:       cached.Body,
				FromCache:  true,
			}, nil
		}
	}

	if !pf.robots.Allowed(ctx, target) {
		pageLog.Info("Refusing fetch: disallowed by robots.txt")
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrRequestCreation, "%s: %v", rawURL, err)
	}
	pf.identities.Next().Apply(req)

	resp, fetchErr := pf.fetcher.FetchWithRetry(ctx, req)
	if fetchErr != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return nil, fetchErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrResponseBodyRead, "%s: %v", rawURL, err)
	}

	result := &Result{
		RequestURL: rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
	}

	if pf.cache != nil {
		if err := pf.cache.Put(rawURL, body, result.FinalURL, result.StatusCode); err != nil {
			pageLog.Warnf("Page cache write failed: %v", err)
		}
	}

	return result, nil
}
