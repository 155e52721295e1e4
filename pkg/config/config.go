package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CrawlLimits holds the caps that bound a single crawl invocation
type CrawlLimits struct {
	MaxRedirects            int      `yaml:"max_redirects,omitempty"`        // Same-scope redirect hops followed by the page fetcher
	MaxSitemaps             int      `yaml:"max_sitemaps,omitempty"`         // Distinct sitemap documents visited
	MaxSitemapURLs          int      `yaml:"max_sitemap_urls,omitempty"`     // <url><loc> entries collected
	MaxJSTargets            int      `yaml:"max_js_targets,omitempty"`       // Script files fetched for URL extraction
	MaxJSURLsPerFile        int      `yaml:"max_js_urls_per_file,omitempty"` // URLs kept from a single script body
	MaxJSURLsTotal          int      `yaml:"max_js_urls_total,omitempty"`    // URLs kept across all script bodies
	MaxFetchWorkers         int      `yaml:"max_fetch_workers,omitempty"`    // Concurrency cap for the expansion pools
	HighSignalLimit         int      `yaml:"high_signal_limit,omitempty"`    // Ranked URLs kept when something scores positively
	PreviewLimit            int      `yaml:"preview_limit,omitempty"`        // Ranked URLs kept when nothing scores positively
	ExtraHighSignalPatterns []string `yaml:"extra_high_signal_patterns,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent           string           `yaml:"user_agent"`
	VerifySSL           *bool            `yaml:"verify_ssl,omitempty"` // nil means verify
	RequestTimeout      time.Duration    `yaml:"request_timeout,omitempty"`
	MaxRetries          int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay   time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay       time.Duration    `yaml:"max_retry_delay,omitempty"`
	DefaultDelayPerHost time.Duration    `yaml:"default_delay_per_host,omitempty"`
	MaxRequestsPerHost  int              `yaml:"max_requests_per_host,omitempty"`
	MaxBodyBytes        int64            `yaml:"max_body_bytes,omitempty"`
	MaxParallelTargets  int              `yaml:"max_parallel_targets,omitempty"`
	OutputDir           string           `yaml:"output_dir"`
	StateDir            string           `yaml:"state_dir"`
	EnableStore         *bool            `yaml:"enable_store,omitempty"`
	WriteYAML           bool             `yaml:"write_yaml,omitempty"`
	WriteMarkdown       bool             `yaml:"write_markdown,omitempty"`
	WriteHTML           bool             `yaml:"write_html,omitempty"`
	HTTPClientSettings  HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Crawl               CrawlLimits      `yaml:"crawl,omitempty"`
}

// ShouldVerifySSL reports whether TLS certificates are verified (default true)
func (c *AppConfig) ShouldVerifySSL() bool {
	if c.VerifySSL != nil {
		return *c.VerifySSL
	}
	return true
}

// StoreEnabled reports whether run records are persisted (default true)
func (c *AppConfig) StoreEnabled() bool {
	if c.EnableStore != nil {
		return *c.EnableStore
	}
	return true
}

// Load reads and parses a YAML config file. An empty path yields a zero config
// that Validate will fill with defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config '%s': %w", path, err)
	}
	return &cfg, nil
}
