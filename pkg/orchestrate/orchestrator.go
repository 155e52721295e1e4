package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
	"github.com/Sriram-PR/recon-crawler/pkg/crawler"
	"github.com/Sriram-PR/recon-crawler/pkg/detect"
	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/parse"
	"github.com/Sriram-PR/recon-crawler/pkg/report"
	"github.com/Sriram-PR/recon-crawler/pkg/storage"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

const (
	gcInterval       = 10 * time.Minute
	evictionInterval = time.Minute
)

// snapshotHeaders are copied from the upstream probe into the run record
var snapshotHeaders = []string{
	"Server",
	"Content-Type",
	"Location",
	"Strict-Transport-Security",
	"X-Powered-By",
}

// TargetResult contains the outcome of scanning a single target
type TargetResult struct {
	Target   string
	Record   *models.RunRecord // nil only when orchestration itself failed
	Files    []string
	Error    error // storage/export failures; crawl failures live in Record
	Duration time.Duration
}

// Success reports whether the crawl produced link data and everything was persisted
func (r TargetResult) Success() bool {
	return r.Error == nil && r.Record != nil && r.Record.Crawler != nil && !r.Record.Crawler.Failed()
}

// Orchestrator scans targets concurrently over shared HTTP resources and one run store
type Orchestrator struct {
	appCfg *config.AppConfig
	log    *logrus.Entry

	// Shared resources
	fetcher  fetch.HTTPFetcher
	hostPool *fetch.HostSemaphorePool
	store    storage.RunStore // nil when persistence is disabled
	writer   *report.Writer
	detector *detect.Detector

	stopBackground context.CancelFunc
}

// NewOrchestrator creates the shared fetch stack, opens the run store when enabled
// and starts background maintenance until Close. appCfg must already be validated.
func NewOrchestrator(appCfg *config.AppConfig, log *logrus.Entry) (*Orchestrator, error) {
	httpClient := fetch.NewClient(appCfg, log.WithField("component", "http_client"))
	rateLimiter := fetch.NewRateLimiter(appCfg.DefaultDelayPerHost, log.WithField("component", "rate_limiter"))
	hostPool := fetch.NewHostSemaphorePool(appCfg.MaxRequestsPerHost, log.WithField("component", "host_pool"))
	fetcher := fetch.NewFetcher(httpClient, appCfg, rateLimiter, hostPool, log.WithField("component", "fetcher"))

	o := &Orchestrator{
		appCfg:   appCfg,
		log:      log,
		fetcher:  fetcher,
		hostPool: hostPool,
		writer:   report.NewWriter(appCfg, log.WithField("component", "report")),
		detector: detect.NewDetector(log.WithField("component", "detect")),
	}

	if appCfg.StoreEnabled() {
		store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "storage"))
		if err != nil {
			return nil, err
		}
		o.store = store
	} else {
		log.Info("Run store disabled; no diffing against previous runs")
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	o.stopBackground = cancel
	go o.hostPool.RunEviction(bgCtx, evictionInterval)
	if o.store != nil {
		go o.store.RunGC(bgCtx, gcInterval)
	}
	return o, nil
}

// Fetcher returns the shared rate-limited fetcher
func (o *Orchestrator) Fetcher() fetch.HTTPFetcher {
	return o.fetcher
}

// Store returns the run store, or nil when persistence is disabled
func (o *Orchestrator) Store() storage.RunStore {
	return o.store
}

// Close stops background maintenance and releases the run store
func (o *Orchestrator) Close() error {
	o.stopBackground()
	if o.store == nil {
		return nil
	}
	return o.store.Close()
}

// Run scans targets, at most MaxParallelTargets at a time, and waits for completion.
// Results are returned in target order.
func (o *Orchestrator) Run(ctx context.Context, targets []string) []TargetResult {
	startTime := time.Now()
	o.log.Infof("Starting scan of %d targets: %v", len(targets), targets)

	results := make([]TargetResult, len(targets))
	g := new(errgroup.Group)
	if o.appCfg.MaxParallelTargets > 0 {
		g.SetLimit(o.appCfg.MaxParallelTargets)
	}
	for i, target := range targets {
		g.Go(func() error {
			results[i] = o.Scan(ctx, target)
			return nil
		})
	}
	_ = g.Wait() // Scan reports through results

	o.logSummary(results, time.Since(startTime))
	return results
}

// Scan runs probe, crawl, diff, store and export for one normalized target
func (o *Orchestrator) Scan(ctx context.Context, target string) TargetResult {
	startTime := time.Now()
	result := TargetResult{Target: target}
	targetLog := o.log.WithField("target", target)

	c, err := crawler.NewCrawler(o.appCfg, o.fetcher, targetLog)
	if err != nil {
		result.Error = fmt.Errorf("failed to create crawler for '%s': %w", target, err)
		targetLog.Errorf("Failed to create crawler: %v", err)
		return result
	}

	rec := &models.RunRecord{
		ID:        uuid.New().String(),
		Target:    target,
		StartedAt: startTime.UTC(),
	}

	probe, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		// The crawler profiles on its own; a failed probe only costs the header snapshot
		targetLog.Warnf("Header probe failed: %v", err)
		probe = nil
	}
	rec.Headers = headerSnapshot(probe)
	rec.Technologies = o.detector.Detect(probe)

	rec.Crawler = c.Crawl(ctx, target, probe)
	rec.TotalURLs = rec.Crawler.TotalURLs()
	if rec.TotalURLs == nil {
		rec.TotalURLs = []string{}
	}
	if rec.Crawler.Cause != nil {
		rec.ErrorCategory = utils.CategorizeError(rec.Crawler.Cause)
	}

	if o.store != nil {
		o.diffAgainstLatest(rec, targetLog)
	}

	rec.FinishedAt = time.Now().UTC()
	rec.DurationMs = rec.FinishedAt.Sub(startTime).Milliseconds()
	result.Record = rec

	var errs []error
	if o.store != nil {
		if err := o.store.SaveRun(rec); err != nil {
			targetLog.Errorf("Failed to store run %s: %v", rec.ID, err)
			errs = append(errs, err)
		}
	}
	files, err := o.writer.Write(rec)
	result.Files = files
	if err != nil {
		targetLog.Errorf("Failed to export run %s: %v", rec.ID, err)
		errs = append(errs, err)
	}
	result.Error = errors.Join(errs...)
	result.Duration = time.Since(startTime)

	if rec.Crawler.Failed() {
		targetLog.WithField("error_category", rec.ErrorCategory).Warnf("Scan finished with crawl error: %s", rec.Crawler.Error)
	} else {
		targetLog.WithFields(logrus.Fields{
			"run_id":     rec.ID,
			"total_urls": len(rec.TotalURLs),
			"new":        len(rec.NewURLs),
			"removed":    len(rec.RemovedURLs),
		}).Info("Scan finished")
	}
	return result
}

// diffAgainstLatest fills the previous-run fields. Diffs are only meaningful
// between two crawls that both produced link data.
func (o *Orchestrator) diffAgainstLatest(rec *models.RunRecord, log *logrus.Entry) {
	prev, err := o.store.LatestRun(rec.Target)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			log.Warnf("Could not load previous run: %v", err)
		}
		return
	}
	rec.PreviousRunID = prev.ID
	if rec.Crawler.Failed() || prev.Crawler == nil || prev.Crawler.Failed() {
		log.Debugf("Skipping diff against run %s: one of the crawls failed", prev.ID)
		return
	}
	rec.NewURLs, rec.RemovedURLs = models.DiffURLs(prev.TotalURLs, rec.TotalURLs)
}

// headerSnapshot extracts the fingerprinting headers from the probe response
func headerSnapshot(resp *fetch.Response) map[string]string {
	if resp == nil || resp.Header == nil {
		return nil
	}
	out := make(map[string]string)
	for _, name := range snapshotHeaders {
		if v := resp.Header.Get(name); v != "" {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// logSummary logs a summary of all scan results
func (o *Orchestrator) logSummary(results []TargetResult, totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Scan completed in %v", totalDuration)
	o.log.Info("Target Results:")

	totalURLs := 0
	successCount := 0
	failCount := 0

	for _, r := range results {
		status := "SUCCESS"
		if !r.Success() {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		urls := 0
		if r.Record != nil {
			urls = len(r.Record.TotalURLs)
		}
		totalURLs += urls

		o.log.Infof("  %s: %s - %d urls in %v", r.Target, status, urls, r.Duration)
		if r.Record != nil && r.Record.Crawler != nil && r.Record.Crawler.Failed() {
			o.log.Infof("    Crawl error [%s]: %s", r.Record.ErrorCategory, r.Record.Crawler.Error)
		}
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d targets (%d success, %d failed), %d urls collected",
		len(results), successCount, failCount, totalURLs)
	for _, u := range o.hostPool.Usage() {
		if u.Waited == 0 {
			break
		}
		o.log.WithFields(logrus.Fields{"host": u.Host, "peak": u.Peak, "requests": u.Acquired, "waited": u.Waited}).
			Info("Per-host request cap throttled this host")
	}
	o.log.Info("============================================")
}

// NormalizeTargets validates and normalizes user-supplied targets, dropping
// blanks and duplicates. Entries may themselves be comma-separated lists.
func NormalizeTargets(raw []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			normalized, _, err := parse.ParseTarget(part)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			out = append(out, normalized)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no targets given", utils.ErrConfigValidation)
	}
	return out, nil
}
