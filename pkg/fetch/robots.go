package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsHandler fetches, parses, caches, and checks robots.txt per host.
// A nil cache entry records a fetch/parse failure; checks against it allow
// access, matching the usual crawler convention.
type RobotsHandler struct {
	fetcher       *Fetcher
	userAgent     string // stable identity for robots probes
	robotsCache   map[string]*robotstxt.RobotsData
	robotsCacheMu sync.Mutex
	log           *logrus.Logger
}

// NewRobotsHandler creates a RobotsHandler.
func NewRobotsHandler(fetcher *Fetcher, userAgent string, log *logrus.Logger) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		userAgent:   userAgent,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// getRobotsData retrieves robots.txt data for the targetURL's host, using the
// cache or fetching. Returns nil on any fetch/parse failure (cached too).
func (rh *RobotsHandler) getRobotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Hostname()

	rh.robotsCacheMu.Lock()
	robotsData, found := rh.robotsCache[host]
	rh.robotsCacheMu.Unlock()
	if found {
		return robotsData
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := rh.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL.String()})
	robotsLog.Debug("Fetching robots.txt...")

	cacheResult := func(data *robotstxt.RobotsData) *robotstxt.RobotsData {
		rh.robotsCacheMu.Lock()
		rh.robotsCache[host] = data
		rh.robotsCacheMu.Unlock()
		return data
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating robots.txt request: %v", err)
		return cacheResult(nil)
	}
	req.Header.Set("User-Agent", rh.userAgent)

	resp, fetchErr := rh.fetcher.FetchWithRetry(ctx, req)
	if fetchErr != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		robotsLog.Debugf("Fetching robots.txt failed: %v", fetchErr)
		return cacheResult(nil)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading robots.txt body: %v", err)
		return cacheResult(nil)
	}

	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		robotsLog.Errorf("Error parsing robots.txt: %v", err)
		return cacheResult(nil)
	}

	robotsLog.Debug("Fetched and parsed robots.txt")
	return cacheResult(data)
}

// Allowed reports whether the configured agent may fetch targetURL. Missing or
// unreadable robots.txt allows access.
func (rh *RobotsHandler) Allowed(ctx context.Context, targetURL *url.URL) bool {
	robotsData := rh.getRobotsData(ctx, targetURL)
	if robotsData == nil {
		return true
	}
	return robotsData.TestAgent(targetURL.RequestURI(), rh.userAgent)
}
