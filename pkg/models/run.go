package models

import "time"

// RunRecord is one stored scan of a target. The crawler result sits under
// "crawler"; TotalURLs is the flattened artifact used for diffing.
type RunRecord struct {
	ID            string            `json:"id" yaml:"id"`
	Target        string            `json:"target" yaml:"target"`
	StartedAt     time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time         `json:"finished_at" yaml:"finished_at"`
	DurationMs    int64             `json:"duration_ms" yaml:"duration_ms"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Technologies  []Technology      `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	Crawler       *CrawlResult      `json:"crawler" yaml:"crawler"`
	TotalURLs     []string          `json:"total_urls" yaml:"total_urls"`
	PreviousRunID string            `json:"previous_run_id,omitempty" yaml:"previous_run_id,omitempty"`
	NewURLs       []string          `json:"new_urls,omitempty" yaml:"new_urls,omitempty"`
	RemovedURLs   []string          `json:"removed_urls,omitempty" yaml:"removed_urls,omitempty"`
	ErrorCategory string            `json:"error_category,omitempty" yaml:"error_category,omitempty"`
}

// Technology is one fingerprinted component of the target's stack
type Technology struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Evidence string `json:"evidence" yaml:"evidence"`
}

// RunSummary is the short form used by history listings
type RunSummary struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	StartedAt  time.Time `json:"started_at"`
	TotalURLs  int       `json:"total_urls"`
	HighSignal int       `json:"high_signal"`
	Error      string    `json:"error,omitempty"`
}

// Summary builds the history line for a record
func (r *RunRecord) Summary() RunSummary {
	s := RunSummary{
		ID:        r.ID,
		Target:    r.Target,
		StartedAt: r.StartedAt,
		TotalURLs: len(r.TotalURLs),
	}
	if r.Crawler != nil {
		s.Error = r.Crawler.Error
		if r.Crawler.Stats != nil {
			s.HighSignal = r.Crawler.Stats.HighSignalCount
		}
	}
	return s
}

// DiffURLs returns entries of current missing from previous (added) and
// entries of previous missing from current (removed), each in input order
func DiffURLs(previous, current []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(previous))
	for _, u := range previous {
		prevSet[u] = struct{}{}
	}
	curSet := make(map[string]struct{}, len(current))
	for _, u := range current {
		curSet[u] = struct{}{}
		if _, ok := prevSet[u]; !ok {
			added = append(added, u)
		}
	}
	for _, u := range previous {
		if _, ok := curSet[u]; !ok {
			removed = append(removed, u)
		}
	}
	return added, removed
}
