package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

// Response is a fully read HTTP response. Body is truncated at the configured byte cap.
type Response struct {
	URL        *url.URL // URL actually requested
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect reports one of the redirect statuses the crawler follows
func (r *Response) IsRedirect() bool {
	switch r.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// Location returns the raw Location header and whether it was present and non-empty
func (r *Response) Location() (string, bool) {
	if r == nil || r.Header == nil {
		return "", false
	}
	loc := r.Header.Get("Location")
	return loc, loc != ""
}

// ResolveLocation resolves the Location header against the request URL
func (r *Response) ResolveLocation() (*url.URL, error) {
	loc, ok := r.Location()
	if !ok {
		return nil, fmt.Errorf("%w: no Location header", utils.ErrParsing)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: location '%s': %w", utils.ErrParsing, loc, err)
	}
	if r.URL == nil {
		return ref, nil
	}
	return r.URL.ResolveReference(ref), nil
}

// HTTPFetcher is the fetch capability consumed by the profiler and crawler
type HTTPFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Fetcher issues GET requests with retry, per-host politeness delay and per-host concurrency limits
type Fetcher struct {
	client      *http.Client
	cfg         *config.AppConfig
	rateLimiter *RateLimiter
	hostPool    *HostSemaphorePool
	log         *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
// rateLimiter and hostPool may be nil to disable the corresponding limit
func NewFetcher(client *http.Client, cfg *config.AppConfig, rateLimiter *RateLimiter, hostPool *HostSemaphorePool, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:      client,
		cfg:         cfg,
		rateLimiter: rateLimiter,
		hostPool:    hostPool,
		log:         log,
	}
}

// Fetch performs one logical GET of rawURL
// 2xx, 3xx and non-429 4xx responses are returned with a nil error so callers can classify them
// Network errors, 5xx and 429 are retried with exponential backoff and jitter; exhausting retries yields ErrRetryFailed
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme '%s'", utils.ErrRequestCreation, target.Scheme)
	}

	if f.hostPool != nil {
		release, err := f.hostPool.Acquire(ctx, target)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	return f.fetchWithRetry(ctx, target)
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, target *url.URL) (*Response, error) {
	var lastErr error
	reqLog := f.log.WithField("url", target.String())
	maxRetries := f.cfg.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", err, lastErr)
			}
			return nil, err
		}

		if attempt > 0 {
			delay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		resp, retryable, err := f.attempt(ctx, target)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		reqLog.WithField("attempt", attempt).Debugf("Attempt failed: %v", err)
	}

	reqLog.Warnf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// attempt performs a single request; retryable reports whether err warrants another try
func (f *Fetcher) attempt(ctx context.Context, target *url.URL) (*Response, bool, error) {
	host := target.Host
	if f.rateLimiter != nil {
		if err := f.rateLimiter.ApplyDelay(ctx, host, f.cfg.DefaultDelayPerHost); err != nil {
			return nil, false, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if f.rateLimiter != nil {
		f.rateLimiter.UpdateLastRequestTime(host)
	}
	if err != nil {
		// Caller cancellation is final; client timeouts and network errors are retried
		if ctx.Err() != nil {
			return nil, false, err
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, resp.StatusCode, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, resp.StatusCode, resp.Status)
	}

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}

	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, false, nil
}

// backoff computes initial * 2^(attempt-1) capped at the max delay, with +/- 10% jitter
func (f *Fetcher) backoff(attempt int) time.Duration {
	maxDelay := f.cfg.MaxRetryDelay
	delay := time.Duration(float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (maxDelay > 0 && delay > maxDelay) {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}
	var jitter time.Duration
	if jitterRange := int64(delay) / 5; jitterRange > 0 {
		jitter = time.Duration(rand.Int63n(jitterRange)) - (delay / 10)
	}
	if final := delay + jitter; final > 0 {
		return final
	}
	return 0
}
