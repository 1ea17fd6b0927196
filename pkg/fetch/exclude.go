package fetch

import (
	"net/url"
	"strings"
)

// ExclusionList matches hostnames against known booking-engine / reservation
// domains. Records must never be built from such pages, and the fetcher
// refuses both direct requests and redirects into them.
//
// Entry forms:
//   - "be.synxis.com"   matches that host and any subdomain of it
//   - "reservations."   matches any host whose first label is "reservations"
type ExclusionList struct {
	hosts  []string
	labels []string
}

// NewExclusionList builds an ExclusionList from config entries.
func NewExclusionList(entries []string) *ExclusionList {
	ex := &ExclusionList{}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if strings.HasSuffix(e, ".") {
			ex.labels = append(ex.labels, e)
		} else {
			ex.hosts = append(ex.hosts, e)
		}
	}
	return ex
}

// MatchesHost reports whether host is on the exclusion list.
func (ex *ExclusionList) MatchesHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range ex.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	for _, l := range ex.labels {
		if strings.HasPrefix(host, l) {
			return true
		}
	}
	return false
}

// MatchesURL reports whether rawURL's host is excluded. Unparseable URLs are
// not excluded; they fail later at request creation.
func (ex *ExclusionList) MatchesURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return ex.MatchesHost(u.Hostname())
}
