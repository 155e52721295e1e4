package crawler

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/parse"
	"github.com/Sriram-PR/recon-crawler/pkg/scope"
)

// extractState carries what earlier extractors learned to later ones
type extractState struct {
	page         *Page
	robots       *fetch.RobotsInfo
	sitemapSeeds []string // .xml sitemaps to expand
}

type extractFunc func(ctx context.Context, c *Crawler, st *extractState) []string

// extractors run in this order; the sitemap extractor depends on robots output
var extractors = []struct {
	category models.Category
	extract  extractFunc
}{
	{models.CategoryRobots, extractRobots},
	{models.CategorySitemap, extractSitemaps},
	{models.CategoryStylesheet, extractStylesheets},
	{models.CategoryScript, extractScripts},
	{models.CategoryInternal, extractInternal},
	{models.CategoryExternal, extractExternal},
	{models.CategoryImage, extractImages},
}

// extract runs every extractor against page and stores each list on result
func (c *Crawler) extract(ctx context.Context, page *Page, result *models.CrawlResult) *extractState {
	st := &extractState{page: page}
	for _, e := range extractors {
		links := scope.Dedup(e.extract(ctx, c, st))
		result.SetLinks(e.category, links)
		c.log.WithFields(logrus.Fields{"category": e.category, "count": len(links)}).Debug("Extracted links")
	}
	return st
}

func extractRobots(ctx context.Context, c *Crawler, st *extractState) []string {
	st.robots = c.robots.Get(ctx, st.page.URL)
	if st.robots == nil {
		return nil
	}
	root := scope.Root(st.page.URL)
	var links []string
	for _, d := range st.robots.Directives {
		resolved := scope.ResolveString(root, d.Value)
		if resolved == "" {
			continue
		}
		links = append(links, resolved)
	}
	return links
}

// extractSitemaps merges robots Sitemap entries with a probe of /sitemap.xml
func extractSitemaps(ctx context.Context, c *Crawler, st *extractState) []string {
	root := scope.Root(st.page.URL)
	var links []string
	for _, v := range st.robots.Sitemaps() {
		if resolved := scope.ResolveString(root, v); resolved != "" {
			links = append(links, resolved)
		}
	}

	probe := (&url.URL{Scheme: root.Scheme, Host: root.Host, Path: "/sitemap.xml"}).String()
	if !slices.Contains(links, probe) {
		resp, err := c.fetcher.Fetch(ctx, probe)
		switch {
		case err != nil:
			c.log.WithField("sitemap_url", probe).Warnf("Sitemap probe failed: %v", err)
		case resp.IsSuccess():
			links = append(links, probe)
		}
	}

	links = scope.Dedup(links)
	for _, l := range links {
		if parse.IsXMLSitemap(l) {
			st.sitemapSeeds = append(st.sitemapSeeds, l)
		}
	}
	return links
}

func extractStylesheets(_ context.Context, _ *Crawler, st *extractState) []string {
	var links []string
	st.page.Doc.Find("link[rel][href]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !hasToken(rel, "stylesheet") {
			return
		}
		href, _ := s.Attr("href")
		links = appendHTTP(links, st.page.URL, href)
	})
	return links
}

func extractScripts(_ context.Context, _ *Crawler, st *extractState) []string {
	return attrLinks(st.page, "script[src]", "src")
}

func extractImages(_ context.Context, _ *Crawler, st *extractState) []string {
	return attrLinks(st.page, "img[src]", "src")
}

func extractInternal(_ context.Context, _ *Crawler, st *extractState) []string {
	return anchorLinks(st.page, true)
}

func extractExternal(_ context.Context, _ *Crawler, st *extractState) []string {
	return anchorLinks(st.page, false)
}

func attrLinks(page *Page, selector, attr string) []string {
	var links []string
	page.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		val, _ := s.Attr(attr)
		links = appendHTTP(links, page.URL, val)
	})
	return links
}

// anchorLinks returns a[href] targets inside (internal=true) or outside the page's registrable domain
func anchorLinks(page *Page, internal bool) []string {
	var links []string
	page.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := scope.Resolve(page.URL, href)
		if !ok || !scope.IsHTTP(u) {
			return
		}
		u.Fragment = ""
		u.RawFragment = ""
		if scope.InDomain(u, page.Domain) == internal {
			links = append(links, u.String())
		}
	})
	return links
}

func appendHTTP(links []string, base *url.URL, ref string) []string {
	u, ok := scope.Resolve(base, ref)
	if !ok || !scope.IsHTTP(u) {
		return links
	}
	return append(links, u.String())
}

// hasToken reports whether a space-separated attribute value contains token (case-insensitive)
func hasToken(value, token string) bool {
	for _, f := range strings.Fields(value) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}
