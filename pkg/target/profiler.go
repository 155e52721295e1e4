package target

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/scope"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

// Profiler probes a target once and classifies any redirect it answers with
type Profiler struct {
	fetcher fetch.HTTPFetcher
	log     *logrus.Entry
}

// NewProfiler creates a Profiler
func NewProfiler(fetcher fetch.HTTPFetcher, log *logrus.Entry) *Profiler {
	return &Profiler{fetcher: fetcher, log: log}
}

// Profile classifies how target redirects. prefetched, when non-nil, is used
// instead of issuing a new request. Failures never propagate: they yield a
// profile with reason "profiling failed".
func (p *Profiler) Profile(ctx context.Context, target string, prefetched *fetch.Response) models.TargetProfile {
	profileLog := p.log.WithField("target", target)

	resp := prefetched
	if resp == nil {
		var err error
		resp, err = p.fetcher.Fetch(ctx, target)
		if err != nil {
			profileLog.Warnf("Profiling probe failed (%s): %v", utils.CategorizeError(err), err)
			return failedProfile(target)
		}
	}

	profile, err := Classify(target, resp)
	if err != nil {
		profileLog.Warnf("Profiling failed: %v", err)
		return failedProfile(target)
	}
	profileLog.WithFields(logrus.Fields{
		"mode":       profile.Mode,
		"confidence": profile.Confidence,
		"effective":  profile.EffectiveURL,
	}).Debug("Target profiled")
	return profile
}

// Classify builds a profile from a probe response without doing I/O
func Classify(target string, resp *fetch.Response) (models.TargetProfile, error) {
	profile := defaultProfile(target)
	loc, ok := resp.Location()
	if !ok {
		return profile, nil
	}
	profile.Location = &loc

	original, err := url.Parse(target)
	if err != nil {
		return profile, fmt.Errorf("%w: target '%s': %w", utils.ErrParsing, target, err)
	}
	base := original
	if resp.URL != nil {
		base = resp.URL
	}
	ref, err := url.Parse(strings.TrimSpace(loc))
	if err != nil {
		return profile, fmt.Errorf("%w: location '%s': %w", utils.ErrParsing, loc, err)
	}
	redirect := base.ResolveReference(ref)
	if !scope.IsHTTP(redirect) {
		return profile, fmt.Errorf("%w: location '%s' is not an http(s) URL", utils.ErrParsing, loc)
	}

	sameHost := strings.EqualFold(original.Hostname(), redirect.Hostname())
	switch {
	case sameHost && strings.EqualFold(original.Scheme, "http") && strings.EqualFold(redirect.Scheme, "https"):
		upgraded := &url.URL{
			Scheme:   "https",
			Host:     redirect.Host,
			Path:     original.Path,
			RawPath:  original.RawPath,
			RawQuery: original.RawQuery,
		}
		if upgraded.Path == "" {
			upgraded.Path = "/"
			upgraded.RawPath = ""
		}
		profile.EffectiveURL = upgraded.String()
		profile.Mode = models.RedirectHTTPToHTTPS
		profile.Confidence = models.ConfidenceHigh
		profile.Reason = models.ReasonHTTPToHTTPS
	case scope.SameScope(original, redirect):
		profile.EffectiveURL = redirect.String()
		profile.Mode = models.RedirectSameScope
		profile.Confidence = models.ConfidenceMedium
		profile.Reason = models.ReasonSameScope
	default:
		profile.EffectiveURL = redirect.String()
		profile.Mode = models.RedirectCrossScope
		profile.Confidence = models.ConfidenceLow
		profile.Reason = models.ReasonCrossScope
	}
	return profile, nil
}

func defaultProfile(target string) models.TargetProfile {
	return models.TargetProfile{
		OriginalURL:  target,
		EffectiveURL: target,
		Mode:         models.RedirectNone,
		Confidence:   models.ConfidenceLow,
		Reason:       models.ReasonNoRedirect,
	}
}

func failedProfile(target string) models.TargetProfile {
	p := defaultProfile(target)
	p.Reason = models.ReasonProfileFailed
	return p
}
