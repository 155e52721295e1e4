package crawler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/score"
	"github.com/Sriram-PR/recon-crawler/pkg/target"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

// Crawler runs the recon pipeline for one target at a time:
// profile, anchor, page fetch, extraction, expansion, scoring.
// A Crawler may be reused; its robots.txt cache lives as long as it does.
type Crawler struct {
	fetcher   fetch.HTTPFetcher
	profiler  *target.Profiler
	robots    *fetch.RobotsHandler
	scorer    *score.Scorer
	limits    config.CrawlLimits
	userAgent string
	log       *logrus.Entry
}

// NewCrawler creates a Crawler. cfg must already be validated.
func NewCrawler(cfg *config.AppConfig, fetcher fetch.HTTPFetcher, baseLogger *logrus.Entry) (*Crawler, error) {
	logger := baseLogger.WithField("component", "crawler")

	scorer, err := score.NewScorer(cfg.Crawl)
	if err != nil {
		return nil, err
	}
	if n := len(cfg.Crawl.ExtraHighSignalPatterns); n > 0 {
		logger.Infof("Compiled %d extra high-signal patterns.", n)
	}

	return &Crawler{
		fetcher:   fetcher,
		profiler:  target.NewProfiler(fetcher, logger.WithField("component", "profiler")),
		robots:    fetch.NewRobotsHandler(fetcher, logger.WithField("component", "robots")),
		scorer:    scorer,
		limits:    cfg.Crawl,
		userAgent: cfg.UserAgent,
		log:       logger,
	}, nil
}

// Crawl runs the full pipeline for rawTarget. prefetched is an optional
// response for rawTarget collected upstream; it is reused for profiling and,
// when the crawl does not re-anchor, as the first page response.
// Crawl never fails: unrecoverable problems yield a result carrying only
// target and error.
func (c *Crawler) Crawl(ctx context.Context, rawTarget string, prefetched *fetch.Response) *models.CrawlResult {
	start := time.Now()
	crawlLog := c.log.WithField("target", rawTarget)

	profile := c.profiler.Profile(ctx, rawTarget, prefetched)
	decision := target.ResolveAnchor(profile)
	if decision.Reanchor {
		crawlLog.Infof("Re-anchoring to %s (%s)", decision.EffectiveTarget, decision.ReasonCode)
	}

	result := models.NewCrawlResult(models.TargetInfo{
		Original:   rawTarget,
		Effective:  decision.EffectiveTarget,
		Reanchored: decision.Reanchor,
		Reason:     decision.Reason,
		ReasonCode: decision.ReasonCode,
	})

	var initial *fetch.Response
	if prefetched != nil && prefetched.URL != nil && prefetched.URL.String() == decision.EffectiveTarget {
		initial = prefetched
	}

	page, err := c.FetchPage(ctx, decision.EffectiveTarget, initial)
	if err != nil {
		crawlLog.WithField("error_category", utils.CategorizeError(err)).Warnf("Page fetch failed: %v", err)
		result.Error = err.Error()
		result.Cause = err
		return result
	}
	pageLog := crawlLog.WithField("url", page.URL.String())

	state := c.extract(ctx, page, result)

	result.URLsInsideSitemap = c.expandSitemaps(ctx, state.sitemapSeeds, page.Domain)
	result.URLsInsideJS = c.expandScripts(ctx, page, result.ScriptLinks)

	result.Stats = c.computeStats(result, state.robots)

	pageLog.WithFields(logrus.Fields{
		"total_unique": result.Stats.TotalUnique,
		"high_signal":  result.Stats.HighSignalCount,
		"sitemap_urls": result.Stats.SitemapURLCount,
		"js_urls":      result.Stats.JSURLCount,
		"duration":     time.Since(start).Round(time.Millisecond),
	}).Info("Crawl complete")
	return result
}
