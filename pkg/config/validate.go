package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

// Default crawl caps
const (
	DefaultMaxRedirects     = 2
	DefaultMaxSitemaps      = 200
	DefaultMaxSitemapURLs   = 5000
	DefaultMaxJSTargets     = 40
	DefaultMaxJSURLsPerFile = 200
	DefaultMaxJSURLsTotal   = 1000
	DefaultMaxFetchWorkers  = 8
	DefaultHighSignalLimit  = 250
	DefaultPreviewLimit     = 20
)

const defaultUserAgent = "Mozilla/5.0 (compatible; recon-crawler/1.0)"

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}

	if c.RequestTimeout < 0 {
		warnings = append(warnings, "request_timeout cannot be negative, defaulting to 10s")
		c.RequestTimeout = 0
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}

	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 500 * time.Millisecond
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 5 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.DefaultDelayPerHost < 0 {
		warnings = append(warnings, "default_delay_per_host cannot be negative, disabling delay")
		c.DefaultDelayPerHost = 0
	}

	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = 4
	}

	if c.MaxBodyBytes < 0 {
		warnings = append(warnings, "max_body_bytes cannot be negative, defaulting to 5MiB")
		c.MaxBodyBytes = 0
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 5 << 20
	}

	if c.MaxParallelTargets <= 0 {
		c.MaxParallelTargets = 2
	}

	if c.OutputDir == "" {
		c.OutputDir = "./recon_output"
	}
	if c.StateDir == "" {
		c.StateDir = "./recon_state"
	}

	if c.WriteHTML && !c.WriteMarkdown {
		warnings = append(warnings, "write_html requires the markdown summary, enabling write_markdown")
		c.WriteMarkdown = true
	}

	c.validateHTTPClientSettings()

	limitWarnings, err := c.Crawl.Validate()
	warnings = append(warnings, limitWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 10 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate applies default caps to zero or negative limits.
// Invalid extra_high_signal_patterns are the only fatal error.
func (l *CrawlLimits) Validate() (warnings []string, err error) {
	fix := func(name string, v *int, def int) {
		if *v < 0 {
			warnings = append(warnings, fmt.Sprintf("crawl.%s cannot be negative, defaulting to %d", name, def))
			*v = def
		}
		if *v == 0 {
			*v = def
		}
	}
	fix("max_redirects", &l.MaxRedirects, DefaultMaxRedirects)
	fix("max_sitemaps", &l.MaxSitemaps, DefaultMaxSitemaps)
	fix("max_sitemap_urls", &l.MaxSitemapURLs, DefaultMaxSitemapURLs)
	fix("max_js_targets", &l.MaxJSTargets, DefaultMaxJSTargets)
	fix("max_js_urls_per_file", &l.MaxJSURLsPerFile, DefaultMaxJSURLsPerFile)
	fix("max_js_urls_total", &l.MaxJSURLsTotal, DefaultMaxJSURLsTotal)
	fix("max_fetch_workers", &l.MaxFetchWorkers, DefaultMaxFetchWorkers)
	fix("high_signal_limit", &l.HighSignalLimit, DefaultHighSignalLimit)
	fix("preview_limit", &l.PreviewLimit, DefaultPreviewLimit)

	if l.MaxJSURLsPerFile > l.MaxJSURLsTotal {
		warnings = append(warnings, fmt.Sprintf(
			"crawl.max_js_urls_per_file (%d) > crawl.max_js_urls_total (%d), capping per-file at total",
			l.MaxJSURLsPerFile, l.MaxJSURLsTotal))
		l.MaxJSURLsPerFile = l.MaxJSURLsTotal
	}

	if _, err := utils.CompileRegexPatterns(l.ExtraHighSignalPatterns); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// DefaultCrawlLimits returns a CrawlLimits with every cap at its default
func DefaultCrawlLimits() CrawlLimits {
	var l CrawlLimits
	l.Validate()
	return l
}
