package config

import (
	"fmt"
	"regexp"
	"time"

	"policy-scraper/pkg/utils"
)

// defaultUserAgents is the built-in browser identity pool, used when the
// config does not supply one.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
}

// defaultExcludedDomains lists booking-engine / reservation hosts the pipeline
// must never fetch or follow redirects into. Suffix matched against hostnames.
var defaultExcludedDomains = []string{
	"be.synxis.com",
	"reservations.travelclick.com",
	"secure.ihg.com",
	"bookings.ihotelier.com",
	"gc.synxis.com",
	"res.windsurfercrs.com",
}

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents
	}

	// Spacing floor: politeness demands at least 2s between hits to one host
	if c.MinDelayPerHost < 2*time.Second {
		if c.MinDelayPerHost > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"min_delay_per_host (%v) below 2s floor, raising to 2s", c.MinDelayPerHost))
		}
		c.MinDelayPerHost = 2 * time.Second
	}
	if c.MaxDelayPerHost <= c.MinDelayPerHost {
		c.MaxDelayPerHost = c.MinDelayPerHost + 2*time.Second
	}

	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 4")
		c.NumWorkers = 4
	}
	if c.MaxRequests <= 0 {
		warnings = append(warnings, "max_requests should be > 0, defaulting to 8")
		c.MaxRequests = 8
	}

	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.HotelsPerTown <= 0 {
		c.HotelsPerTown = 30
	}

	if len(c.ExcludedDomains) == 0 {
		c.ExcludedDomains = defaultExcludedDomains
	}
	if _, err := utils.CompileRegexPatterns(c.DisallowedPathPatterns); err != nil {
		return warnings, err
	}

	if c.RosterDir == "" {
		warnings = append(warnings, "roster_dir is empty, defaulting to './config/roster'")
		c.RosterDir = "./config/roster"
	}
	if c.DataDir == "" {
		warnings = append(warnings, "data_dir is empty, defaulting to './data'")
		c.DataDir = "./data"
	}
	if c.LogDir == "" {
		c.LogDir = "./logs"
	}

	// HTTP client defaults
	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = 30 * time.Second
	}
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 100
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 4
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.ExpectContinueTimeout <= 0 {
		c.HTTPClientSettings.ExpectContinueTimeout = 1 * time.Second
	}
	if c.HTTPClientSettings.DialerTimeout <= 0 {
		c.HTTPClientSettings.DialerTimeout = 15 * time.Second
	}
	if c.HTTPClientSettings.DialerKeepAlive <= 0 {
		c.HTTPClientSettings.DialerKeepAlive = 30 * time.Second
	}

	// Cache defaults
	if c.Cache.Enabled {
		if c.Cache.Dir == "" {
			c.Cache.Dir = "./cache"
		}
		if c.Cache.TTL <= 0 {
			c.Cache.TTL = 24 * time.Hour
		}
	}

	// LLM defaults
	if c.LLM.Enabled {
		if c.LLM.Model == "" {
			return warnings, utils.WrapErrorf(utils.ErrConfigValidation, "llm.enabled requires llm.model")
		}
		if c.LLM.MaxInputTokens <= 0 {
			c.LLM.MaxInputTokens = 4000
		}
		if c.LLM.TokenEncoding == "" {
			c.LLM.TokenEncoding = "cl100k_base"
		}
	}

	return warnings, nil
}

// CompiledDisallowedPatterns returns the disallowed path patterns compiled.
// Validate must have been called first so invalid patterns are already fatal.
func (c *AppConfig) CompiledDisallowedPatterns() []*regexp.Regexp {
	compiled, err := utils.CompileRegexPatterns(c.DisallowedPathPatterns)
	if err != nil {
		return nil
	}
	return compiled
}
