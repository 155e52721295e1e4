package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

// NormalizeURL standardizes a URL for comparison and storage
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https), ensures empty path becomes "/", and removes fragments
// Query strings are kept since they carry signal for the scorer
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
		normalized.RawPath = ""
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseTarget validates a user-supplied target: it must be an absolute http(s) URL with a host
// Returns the normalized string and the parsed URL
func ParseTarget(raw string) (string, *url.URL, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.ParseRequestURI(raw) // Stricter parsing
	if err != nil {
		return "", nil, fmt.Errorf("%w: target '%s': %w", utils.ErrParsing, raw, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", nil, fmt.Errorf("%w: target '%s' must use http or https", utils.ErrConfigValidation, raw)
	}
	if parsed.Hostname() == "" {
		return "", nil, fmt.Errorf("%w: target '%s' has no host", utils.ErrConfigValidation, raw)
	}
	normalized := NormalizeURL(parsed)
	u, err := url.Parse(normalized)
	if err != nil {
		return "", nil, fmt.Errorf("%w: target '%s': %w", utils.ErrParsing, raw, err)
	}
	return normalized, u, nil
}
