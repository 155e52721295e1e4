package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/parse"
	"github.com/Sriram-PR/recon-crawler/pkg/target"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

const (
	defaultListLimit  = 10
	defaultMaxResults = 10
	maxSearchResults  = 100
)

// requireTarget reads and normalizes the url argument
func requireTarget(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	raw := request.GetString("url", "")
	if raw == "" {
		return "", mcp.NewToolResultError("url parameter is required")
	}
	normalized, _, err := parse.ParseTarget(raw)
	if err != nil {
		return "", mcp.NewToolResultError(fmt.Sprintf("invalid url: %v", err))
	}
	return normalized, nil
}

// handleProfileTarget handles the profile_target tool
func (s *Server) handleProfileTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errResult := requireTarget(request)
	if errResult != nil {
		return errResult, nil
	}

	startTime := time.Now()
	profile := s.profiler.Profile(ctx, t, nil)
	decision := target.ResolveAnchor(profile)

	result := map[string]interface{}{
		"target":        t,
		"profile":       profile,
		"anchor":        decision,
		"probe_time_ms": time.Since(startTime).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleScanTarget handles the scan_target tool
func (s *Server) handleScanTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errResult := requireTarget(request)
	if errResult != nil {
		return errResult, nil
	}

	if s.jobManager.IsRunning(t) {
		existingJob := s.jobManager.GetJobByTarget(t)
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A scan is already in progress for this target",
			"target":  t,
		}
		if existingJob != nil {
			result["job_id"] = existingJob.ID
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	job, err := s.jobManager.CreateJob(t)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create job: %v", err)), nil
	}

	go s.runScanJob(job)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Scan started successfully",
		"job_id":  job.ID,
		"target":  t,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"target":     job.Target,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}

	if job.RunID != "" {
		result["run_id"] = job.RunID
		result["total_urls"] = job.TotalURLs
		result["high_signal"] = job.HighSignal
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}

	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' is not running", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id": jobID,
		"status": JobStatusCancelled,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListRuns handles the list_runs tool
func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := s.orch.Store()
	if store == nil {
		return mcp.NewToolResultError("run store is disabled"), nil
	}
	t, errResult := requireTarget(request)
	if errResult != nil {
		return errResult, nil
	}
	limit := request.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	runs, err := store.ListRuns(t, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}

	result := map[string]interface{}{
		"target": t,
		"runs":   runs,
		"count":  len(runs),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetRun handles the get_run tool
func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := s.orch.Store()
	if store == nil {
		return mcp.NewToolResultError("run store is disabled"), nil
	}
	runID := request.GetString("run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}

	rec, err := store.GetRun(runID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("run '%s' not found", runID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load run: %v", err)), nil
	}

	if request.GetBool("full", false) {
		b, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode run: %v", err)), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	}

	return mcp.NewToolResultText(formatJSON(runSummary(rec))), nil
}

// runSummary is the compact view of a run returned by get_run
func runSummary(rec *models.RunRecord) map[string]interface{} {
	result := map[string]interface{}{
		"id":          rec.ID,
		"target":      rec.Target,
		"started_at":  rec.StartedAt.Format(time.RFC3339),
		"duration_ms": rec.DurationMs,
		"total_urls":  len(rec.TotalURLs),
	}
	if len(rec.Headers) > 0 {
		result["headers"] = rec.Headers
	}
	if len(rec.Technologies) > 0 {
		result["technologies"] = rec.Technologies
	}
	if rec.PreviousRunID != "" {
		result["previous_run_id"] = rec.PreviousRunID
		result["new_urls"] = nonNil(rec.NewURLs)
		result["removed_urls"] = nonNil(rec.RemovedURLs)
	}
	if c := rec.Crawler; c != nil {
		result["effective_target"] = c.Target.Effective
		result["reanchored"] = c.Target.Reanchored
		if c.Failed() {
			result["error"] = c.Error
			result["error_category"] = rec.ErrorCategory
		}
		if c.Stats != nil {
			result["high_signal_urls"] = nonNil(c.Stats.HighSignalURLs)
		}
	}
	return result
}

// handleSearchURLs handles the search_urls tool
func (s *Server) handleSearchURLs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := s.orch.Store()
	if store == nil {
		return mcp.NewToolResultError("run store is disabled"), nil
	}
	t, errResult := requireTarget(request)
	if errResult != nil {
		return errResult, nil
	}
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	maxResults := request.GetInt("max_results", defaultMaxResults)
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	rec, err := store.LatestRun(t)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no runs stored for '%s'", t)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load latest run: %v", err)), nil
	}

	matches := s.searchURLs(rec.TotalURLs, query)
	total := len(matches)
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	result := map[string]interface{}{
		"target":        t,
		"run_id":        rec.ID,
		"query":         query,
		"results":       matches,
		"total_matches": total,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// urlMatch is one search_urls hit
type urlMatch struct {
	URL   string `json:"url"`
	Score int    `json:"score"`
}

// searchURLs returns the non-excluded URLs containing query, best score first
func (s *Server) searchURLs(urls []string, query string) []urlMatch {
	q := strings.ToLower(query)
	matches := make([]urlMatch, 0)
	for _, u := range urls {
		if !strings.Contains(strings.ToLower(u), q) {
			continue
		}
		sc, excluded := s.scorer.Score(u)
		if excluded {
			continue
		}
		matches = append(matches, urlMatch{URL: u, Score: sc})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// runScanJob runs a scan through the shared orchestrator and records the outcome
func (s *Server) runScanJob(job *Job) {
	s.jobManager.UpdateStatus(job.ID, JobStatusRunning, "")

	jobCtx := s.jobManager.GetContext(job.ID)

	res := s.orch.Scan(jobCtx, job.Target)
	if jobCtx.Err() != nil {
		s.jobManager.UpdateStatus(job.ID, JobStatusCancelled, "")
		return
	}

	if rec := res.Record; rec != nil {
		highSignal := 0
		if rec.Crawler != nil && rec.Crawler.Stats != nil {
			highSignal = rec.Crawler.Stats.HighSignalCount
		}
		s.jobManager.SetOutcome(job.ID, rec.ID, len(rec.TotalURLs), highSignal)
	}

	switch {
	case res.Error != nil:
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, res.Error.Error())
	case res.Record == nil:
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, "scan produced no run record")
	case res.Record.Crawler != nil && res.Record.Crawler.Failed():
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, res.Record.Crawler.Error)
	default:
		s.jobManager.UpdateStatus(job.ID, JobStatusCompleted, "")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// formatJSON formats a map as indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
