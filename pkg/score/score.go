// Package score ranks discovered URLs by how likely they are to matter for a
// security review. Scoring only looks at the path and query, never the host.
package score

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

const (
	tokenWeight = 4
	depthWeight = 2
	queryWeight = 1
)

var highSignalTokens = []string{
	"admin", "login", "signin", "signup", "register", "auth", "oauth", "sso",
	"api", "graphql", "config", "env", "backup", "bak", "debug", "dev",
	"staging", "internal", "private", "secret", "token", "key", "password",
	"passwd", "reset", "upload", "console", "dashboard", "manage", "panel",
	"phpmyadmin", "wp-admin", "wp-login", ".git", "server-status", "actuator",
	"swagger", "setup", "install",
}

var lowSignalExtensions = map[string]struct{}{
	// images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {}, ".webp": {}, ".bmp": {}, ".tif": {}, ".tiff": {}, ".avif": {},
	// styles and scripts
	".css": {}, ".scss": {}, ".less": {}, ".js": {}, ".mjs": {}, ".map": {},
	// archives
	".zip": {}, ".gz": {}, ".tgz": {}, ".tar": {}, ".rar": {}, ".7z": {}, ".bz2": {},
	// media
	".mp3": {}, ".mp4": {}, ".webm": {}, ".ogg": {}, ".wav": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".flac": {},
	// fonts
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
}

// Scorer ranks URLs; it is safe for concurrent use once built
type Scorer struct {
	extra        []*regexp.Regexp
	limit        int
	previewLimit int
}

// NewScorer builds a Scorer from validated crawl limits
func NewScorer(limits config.CrawlLimits) (*Scorer, error) {
	extra, err := utils.CompileRegexPatterns(limits.ExtraHighSignalPatterns)
	if err != nil {
		return nil, err
	}
	s := &Scorer{extra: extra, limit: limits.HighSignalLimit, previewLimit: limits.PreviewLimit}
	if s.limit <= 0 {
		s.limit = config.DefaultHighSignalLimit
	}
	if s.previewLimit <= 0 {
		s.previewLimit = config.DefaultPreviewLimit
	}
	return s, nil
}

// Score returns the signal score of rawURL and whether it is excluded outright
// (unparseable, or the path ends in a low-signal extension)
func (s *Scorer) Score(rawURL string) (int, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, true
	}
	p := strings.ToLower(u.EscapedPath())
	if _, low := lowSignalExtensions[path.Ext(p)]; low {
		return 0, true
	}

	score := 0
	if s.matchesHighSignal(p) {
		score += tokenWeight
	}
	if strings.Count(p, "/") >= 2 {
		score += depthWeight
	}
	if u.RawQuery != "" {
		score += queryWeight
	}
	return score, false
}

func (s *Scorer) matchesHighSignal(p string) bool {
	for _, tok := range highSignalTokens {
		if strings.Contains(p, tok) {
			return true
		}
	}
	for _, re := range s.extra {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

type scored struct {
	url   string
	score int
}

// Rank orders urls by descending score, then length, then lexically, dropping
// excluded URLs and duplicates. The result holds at most the high-signal limit,
// or the preview limit when nothing scored above zero.
func (s *Scorer) Rank(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	candidates := make([]scored, 0, len(urls))
	positive := false
	for _, u := range urls {
		if _, dup := seen[u]; dup || u == "" {
			continue
		}
		seen[u] = struct{}{}
		sc, excluded := s.Score(u)
		if excluded {
			continue
		}
		if sc > 0 {
			positive = true
		}
		candidates = append(candidates, scored{url: u, score: sc})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if len(a.url) != len(b.url) {
			return len(a.url) < len(b.url)
		}
		return a.url < b.url
	})

	limit := s.previewLimit
	if positive {
		limit = s.limit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.url
	}
	return out
}
