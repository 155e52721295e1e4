package crawler

import (
	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
)

// computeStats derives Stats from the finished result. total_urls is the union
// of every category, then sitemap and script discoveries, in that order.
func (c *Crawler) computeStats(result *models.CrawlResult, robots *fetch.RobotsInfo) *models.Stats {
	stats := &models.Stats{
		RobotsCount:     len(result.RobotsLinks),
		SitemapCount:    len(result.SitemapLinks),
		StylesheetCount: len(result.StylesheetLinks),
		ScriptCount:     len(result.ScriptLinks),
		InternalCount:   len(result.InternalLinks),
		ExternalCount:   len(result.ExternalLinks),
		ImageCount:      len(result.ImageLinks),
		SitemapURLCount: len(result.URLsInsideSitemap),
		JSURLCount:      len(result.URLsInsideJS),
	}

	seen := make(map[string]struct{})
	total := []string{}
	add := func(list []string) {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			total = append(total, u)
		}
	}
	for _, cat := range models.Categories {
		add(result.Links(cat))
	}
	add(result.URLsInsideSitemap)
	add(result.URLsInsideJS)

	stats.TotalURLs = total
	stats.TotalUnique = len(total)
	stats.HighSignalURLs = c.scorer.Rank(total)
	stats.HighSignalCount = len(stats.HighSignalURLs)
	stats.RobotsAllowsRoot = robots.AllowsRoot(c.userAgent)
	return stats
}
