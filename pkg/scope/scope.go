package scope

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// discardPrefixes mark references that never point at a fetchable resource
var discardPrefixes = []string{"#", "javascript:", "mailto:"}

// RegistrableDomain returns the public-suffix-aware organization domain for a host
// (e.g. "example.co.uk" for "www.example.co.uk")
// IP addresses, single-label hosts and lookup failures fall back to the bare hostname
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}

// SameScope reports whether two URLs share a registrable domain
func SameScope(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	da := RegistrableDomain(a.Hostname())
	return da != "" && da == RegistrableDomain(b.Hostname())
}

// InDomain reports whether u belongs to the given registrable domain
func InDomain(u *url.URL, domain string) bool {
	return u != nil && domain != "" && RegistrableDomain(u.Hostname()) == domain
}

// IsHTTP reports whether u is an absolute http(s) URL with a host
func IsHTTP(u *url.URL) bool {
	if u == nil || u.Host == "" {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

// Discardable reports whether a raw reference is empty or uses a non-navigable prefix
func Discardable(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return true
	}
	lower := strings.ToLower(ref)
	for _, p := range discardPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// Base returns a copy of u usable as a resolution base: the path always ends
// in "/" (so /docs/page resolves "next" to /docs/page/next) and fragments are dropped
func Base(u *url.URL) *url.URL {
	b := *u
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
		b.RawPath = ""
	}
	b.Fragment = ""
	b.RawFragment = ""
	return &b
}

// Root returns scheme://host/ for u
func Root(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

// Resolve resolves ref against base per RFC 3986
// Discardable or malformed references return ok=false
func Resolve(base *url.URL, ref string) (*url.URL, bool) {
	if base == nil || Discardable(ref) {
		return nil, false
	}
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, false
	}
	return Base(base).ResolveReference(parsed), true
}

// ResolveString is Resolve returning the resolved URL as a string, "" when dropped
func ResolveString(base *url.URL, ref string) string {
	u, ok := Resolve(base, ref)
	if !ok {
		return ""
	}
	return u.String()
}

// Dedup keeps the first occurrence of each non-empty string, preserving order
func Dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
