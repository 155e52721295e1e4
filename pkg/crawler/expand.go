package crawler

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/parse"
	"github.com/Sriram-PR/recon-crawler/pkg/scope"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
	"github.com/Sriram-PR/recon-crawler/pkg/workpool"
)

// jsURLPattern matches absolute http(s) URLs embedded in script text
var jsURLPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>\x60\\{}|^]+`)

const trailingPunctuation = ".,;:!?)]}*"

// expandSitemaps walks sitemap seeds breadth-first, batch by batch, and returns
// the <url><loc> entries found inside domain. Bounded by MaxSitemaps distinct
// documents and MaxSitemapURLs entries; cycles in sitemap indexes end at the seen set.
// Child sitemaps are followed wherever they are hosted; only page locs are scoped.
func (c *Crawler) expandSitemaps(ctx context.Context, seeds []string, domain string) []string {
	maxSitemaps := c.limits.MaxSitemaps
	maxURLs := c.limits.MaxSitemapURLs

	links := []string{}
	linkSet := make(map[string]struct{})
	seen := make(map[string]struct{})
	pending := seeds

	for len(pending) > 0 && len(seen) < maxSitemaps && len(links) < maxURLs {
		if ctx.Err() != nil {
			break
		}
		budget := maxSitemaps - len(seen)
		var batch []string
		for _, sm := range pending {
			if len(batch) >= budget {
				break
			}
			if _, ok := seen[sm]; ok {
				continue
			}
			seen[sm] = struct{}{}
			batch = append(batch, sm)
		}
		if len(batch) == 0 {
			break
		}

		var mu sync.Mutex
		var next []string
		workpool.Run(ctx, c.log, batch, c.limits.MaxFetchWorkers, func(ctx context.Context, sitemapURL string) {
			pages, children := c.fetchSitemap(ctx, sitemapURL, domain)
			mu.Lock()
			defer mu.Unlock()
			for _, p := range pages {
				if _, dup := linkSet[p]; dup {
					continue
				}
				linkSet[p] = struct{}{}
				links = append(links, p)
			}
			next = append(next, children...)
		})

		if len(links) > maxURLs {
			links = links[:maxURLs]
		}
		pending = next
	}

	c.log.WithFields(logrus.Fields{"sitemaps_visited": len(seen), "urls": len(links)}).Debug("Sitemap expansion finished")
	return links
}

// fetchSitemap returns the in-domain page locs and child .xml sitemaps of one document.
// Failures are logged and yield nothing.
func (c *Crawler) fetchSitemap(ctx context.Context, sitemapURL, domain string) (pages, children []string) {
	smLog := c.log.WithField("sitemap_url", sitemapURL)
	resp, err := c.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		smLog.WithField("error_category", utils.CategorizeError(err)).Warnf("Sitemap fetch failed: %v", err)
		return nil, nil
	}
	if !resp.IsSuccess() {
		smLog.WithField("status_code", resp.StatusCode).Warn("Sitemap fetch returned non-success status")
		return nil, nil
	}
	doc, err := parse.ParseSitemap(resp.Body)
	if err != nil {
		smLog.Warnf("Sitemap parse failed: %v", err)
		return nil, nil
	}
	var dropped int
	for _, loc := range doc.PageLocs() {
		u, err := url.Parse(loc)
		if err != nil || !scope.IsHTTP(u) || !scope.InDomain(u, domain) {
			dropped++
			continue
		}
		pages = append(pages, loc)
	}
	if dropped > 0 {
		smLog.WithField("dropped", dropped).Debug("Skipped sitemap locs outside target domain")
	}
	return pages, doc.ChildSitemaps()
}

// expandScripts fetches same-domain scripts and collects in-scope URLs from their bodies
func (c *Crawler) expandScripts(ctx context.Context, page *Page, scripts []string) []string {
	var targets []string
	for _, s := range scope.Dedup(scripts) {
		if len(targets) >= c.limits.MaxJSTargets {
			break
		}
		u, err := url.Parse(s)
		if err != nil || !scope.InDomain(u, page.Domain) {
			continue
		}
		targets = append(targets, s)
	}

	found := []string{}
	seen := make(map[string]struct{})
	var mu sync.Mutex
	workpool.Run(ctx, c.log, targets, c.limits.MaxFetchWorkers, func(ctx context.Context, scriptURL string) {
		urls := c.scanScript(ctx, scriptURL, page.Domain)
		mu.Lock()
		defer mu.Unlock()
		for _, u := range urls {
			if len(found) >= c.limits.MaxJSURLsTotal {
				return
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			found = append(found, u)
		}
	})

	c.log.WithFields(logrus.Fields{"scripts": len(targets), "urls": len(found)}).Debug("Script expansion finished")
	return found
}

// scanScript fetches one script and returns up to MaxJSURLsPerFile in-domain URLs from it
func (c *Crawler) scanScript(ctx context.Context, scriptURL, domain string) []string {
	jsLog := c.log.WithField("script_url", scriptURL)
	resp, err := c.fetcher.Fetch(ctx, scriptURL)
	if err != nil {
		jsLog.WithField("error_category", utils.CategorizeError(err)).Warnf("Script fetch failed: %v", err)
		return nil
	}
	if !resp.IsSuccess() {
		jsLog.WithField("status_code", resp.StatusCode).Warn("Script fetch returned non-success status")
		return nil
	}
	return ExtractScriptURLs(string(resp.Body), domain, c.limits.MaxJSURLsPerFile)
}

// ExtractScriptURLs scans script text for absolute http(s) URLs inside domain.
// Escaped slashes (https:\/\/host\/path) are unescaped first; trailing punctuation
// is trimmed; at most limit unique URLs are returned in order of appearance.
func ExtractScriptURLs(body, domain string, limit int) []string {
	body = strings.ReplaceAll(body, `\/`, "/")
	var out []string
	seen := make(map[string]struct{})
	for _, m := range jsURLPattern.FindAllString(body, -1) {
		if limit > 0 && len(out) >= limit {
			break
		}
		candidate := strings.TrimRight(m, trailingPunctuation)
		u, err := url.Parse(candidate)
		if err != nil || !scope.IsHTTP(u) || !scope.InDomain(u, domain) {
			continue
		}
		s := u.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
