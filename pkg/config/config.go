package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the global application configuration.
type AppConfig struct {
	// Politeness / identity
	UserAgents      []string      `yaml:"user_agents,omitempty"`        // browser identity pool, rotated per request
	MinDelayPerHost time.Duration `yaml:"min_delay_per_host,omitempty"` // spacing floor between requests to one host
	MaxDelayPerHost time.Duration `yaml:"max_delay_per_host,omitempty"` // jitter ceiling; realized delay ∈ [min, max]

	// Concurrency
	NumWorkers  int `yaml:"num_workers,omitempty"`  // hotels resolved in parallel
	MaxRequests int `yaml:"max_requests,omitempty"` // global in-flight HTTP request bound

	// Retry behavior
	MaxRetries        int           `yaml:"max_retries,omitempty"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay,omitempty"`

	// Run shape
	GlobalRunTimeout time.Duration `yaml:"global_run_timeout,omitempty"` // 0 = unbounded; checked between hotels
	HotelsPerTown    int           `yaml:"hotels_per_town,omitempty"`    // roster cap per town

	// Scope
	ExcludedDomains        []string `yaml:"excluded_domains,omitempty"`         // booking-engine hosts, suffix matched
	DisallowedPathPatterns []string `yaml:"disallowed_path_patterns,omitempty"` // regexes; discovery skips matching links

	// Paths
	RosterDir string `yaml:"roster_dir,omitempty"`
	DataDir   string `yaml:"data_dir,omitempty"`
	LogDir    string `yaml:"log_dir,omitempty"`

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Cache              CacheConfig      `yaml:"cache,omitempty"`
	LLM                LLMConfig        `yaml:"llm,omitempty"`
	Output             OutputConfig     `yaml:"output,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client.
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// CacheConfig controls the badger-backed page cache. With a TTL > 0, a body
// fetched within the window is served from the cache instead of the network.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled,omitempty"`
	Dir     string        `yaml:"dir,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// LLMConfig controls the optional second-pass extraction. The pipeline is
// fully functional with it disabled; when enabled it only fills fields the
// rule extractor left empty.
type LLMConfig struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	Model          string `yaml:"model,omitempty"`
	MaxInputTokens int    `yaml:"max_input_tokens,omitempty"`
	TokenEncoding  string `yaml:"token_encoding,omitempty"` // tiktoken encoding name
}

// OutputConfig controls export extras beyond the JSON/CSV set.
type OutputConfig struct {
	SaveSnapshots bool `yaml:"save_snapshots,omitempty"` // keep policy pages as markdown
}

// Load reads and parses an AppConfig from a YAML file. Validation is the
// caller's responsibility so warnings can be routed to its logger.
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return &cfg, nil
}

// DefaultUserAgent returns the first identity of the pool, used where a single
// stable identity is wanted (robots.txt probes).
func (c *AppConfig) DefaultUserAgent() string {
	if len(c.UserAgents) > 0 {
		return c.UserAgents[0]
	}
	return defaultUserAgents[0]
}
