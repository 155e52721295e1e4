package fetch

import (
	"bufio"
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsDirective is one Disallow, Allow or Sitemap line, in file order
type RobotsDirective struct {
	Field string // "disallow", "allow" or "sitemap"
	Value string
}

// RobotsInfo is the parsed robots.txt of one origin
type RobotsInfo struct {
	URL        string
	Directives []RobotsDirective
	Data       *robotstxt.RobotsData // nil if the body could not be parsed
}

// AllowsRoot reports whether agent may fetch "/"; nil when unknown
func (ri *RobotsInfo) AllowsRoot(agent string) *bool {
	if ri == nil || ri.Data == nil {
		return nil
	}
	allowed := ri.Data.TestAgent("/", agent)
	return &allowed
}

// Sitemaps returns the Sitemap directive values in file order
func (ri *RobotsInfo) Sitemaps() []string {
	if ri == nil {
		return nil
	}
	var out []string
	for _, d := range ri.Directives {
		if d.Field == "sitemap" {
			out = append(out, d.Value)
		}
	}
	return out
}

// RobotsHandler fetches, parses and caches robots.txt per origin (scheme://host)
type RobotsHandler struct {
	fetcher     HTTPFetcher
	robotsCache map[string]*RobotsInfo // origin -> parsed data (nil when missing)
	cacheMu     sync.Mutex
	log         *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(fetcher HTTPFetcher, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		robotsCache: make(map[string]*RobotsInfo),
		log:         log,
	}
}

// Get returns robots.txt data for the origin of target, fetching on cache miss
// Returns nil when the file is missing, non-2xx, or the fetch failed
func (rh *RobotsHandler) Get(ctx context.Context, target *url.URL) *RobotsInfo {
	origin := target.Scheme + "://" + target.Host

	rh.cacheMu.Lock()
	info, found := rh.robotsCache[origin]
	rh.cacheMu.Unlock()
	if found {
		return info
	}

	robotsURL := origin + "/robots.txt"
	robotsLog := rh.log.WithField("robots_url", robotsURL)
	robotsLog.Debug("Fetching robots.txt")

	info = rh.fetch(ctx, robotsURL, robotsLog)

	rh.cacheMu.Lock()
	rh.robotsCache[origin] = info
	rh.cacheMu.Unlock()
	return info
}

func (rh *RobotsHandler) fetch(ctx context.Context, robotsURL string, robotsLog *logrus.Entry) *RobotsInfo {
	resp, err := rh.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	if !resp.IsSuccess() {
		robotsLog.WithField("status_code", resp.StatusCode).Debug("robots.txt not available")
		return nil
	}

	info := &RobotsInfo{URL: robotsURL, Directives: ParseRobotsDirectives(resp.Body)}
	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		robotsLog.Warnf("Parsing robots.txt failed: %v", err)
	} else {
		info.Data = data
	}
	robotsLog.WithField("directives", len(info.Directives)).Debug("robots.txt parsed")
	return info
}

// ParseRobotsDirectives scans a robots.txt body line by line for Disallow, Allow and Sitemap
// Field names are case-insensitive; comments after '#' are stripped; empty values are skipped
func ParseRobotsDirectives(body []byte) []RobotsDirective {
	var directives []RobotsDirective
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch field {
		case "disallow", "allow", "sitemap":
			directives = append(directives, RobotsDirective{Field: field, Value: value})
		}
	}
	return directives
}
