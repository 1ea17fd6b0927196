package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/config"
	"policy-scraper/pkg/utils"
)

// NewClient creates the shared HTTP client. Redirects are followed up to the
// usual limit, but never into a host on the booking-engine exclusion list:
// policy pages that bounce into a reservation engine are treated as excluded
// rather than scraped.
func NewClient(cfg config.HTTPClientConfig, exclusions *ExclusionList, log *logrus.Logger) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			if exclusions != nil && exclusions.MatchesHost(req.URL.Hostname()) {
				log.WithFields(logrus.Fields{
					"from": via[len(via)-1].URL.String(),
					"to":   req.URL.String(),
				}).Debug("Refusing redirect into excluded domain")
				return fmt.Errorf("%w: redirect to %s", utils.ErrExcludedDomain, req.URL.Hostname())
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
}
