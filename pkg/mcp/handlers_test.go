package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
)

func newTestServer(t *testing.T, store bool) *Server {
	t.Helper()
	appCfg := &config.AppConfig{
		UserAgent:      "recon-test/1.0",
		RequestTimeout: 5 * time.Second,
		OutputDir:      filepath.Join(t.TempDir(), "out"),
		StateDir:       filepath.Join(t.TempDir(), "state"),
		EnableStore:    &store,
	}
	_, err := appCfg.Validate()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := NewServer(&ServerConfig{AppConfig: appCfg, Transport: "stdio", Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func reconSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, `<html><body>
<a href="/about?x=1">about</a>
<a href="/admin-panel">admin</a>
<img src="/static/abc.png">
</body></html>`)
		case "/moved":
			http.Redirect(w, r, "/", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	if res.IsError {
		return map[string]any{"error": text.Text}, true
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out), text.Text)
	return out, false
}

func TestProfileTarget(t *testing.T) {
	s := newTestServer(t, false)
	srv := reconSite(t)

	out, isErr := callTool(t, s.handleProfileTarget, "profile_target", map[string]any{"url": srv.URL + "/moved"})
	require.False(t, isErr, out)
	profile := out["profile"].(map[string]any)
	assert.Equal(t, "same_scope_redirect", profile["mode"])
	assert.Equal(t, srv.URL+"/", profile["effective_url"])
	anchor := out["anchor"].(map[string]any)
	assert.Equal(t, false, anchor["reanchor"])
	assert.Equal(t, "same-scope", anchor["reason_code"])

	out, isErr = callTool(t, s.handleProfileTarget, "profile_target", map[string]any{"url": srv.URL})
	require.False(t, isErr)
	assert.Equal(t, "none", out["profile"].(map[string]any)["mode"])

	_, isErr = callTool(t, s.handleProfileTarget, "profile_target", map[string]any{"url": "ftp://example.com"})
	assert.True(t, isErr)
	_, isErr = callTool(t, s.handleProfileTarget, "profile_target", map[string]any{})
	assert.True(t, isErr)
}

func TestScanJobLifecycle(t *testing.T) {
	s := newTestServer(t, true)
	srv := reconSite(t)

	started, isErr := callTool(t, s.handleScanTarget, "scan_target", map[string]any{"url": srv.URL})
	require.False(t, isErr, started)
	jobID, _ := started["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, srv.URL+"/", started["target"])

	var status map[string]any
	require.Eventually(t, func() bool {
		status, _ = callTool(t, s.handleGetJobStatus, "get_job_status", map[string]any{"job_id": jobID})
		return status["status"] == string(JobStatusCompleted) || status["status"] == string(JobStatusFailed)
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, string(JobStatusCompleted), status["status"], status)
	runID, _ := status["run_id"].(string)
	require.NotEmpty(t, runID)
	assert.Contains(t, status, "completed_at")

	t.Run("list_runs", func(t *testing.T) {
		out, isErr := callTool(t, s.handleListRuns, "list_runs", map[string]any{"url": srv.URL})
		require.False(t, isErr, out)
		assert.EqualValues(t, 1, out["count"])
		runs := out["runs"].([]any)
		assert.Equal(t, runID, runs[0].(map[string]any)["id"])
	})

	t.Run("get_run summary and full", func(t *testing.T) {
		out, isErr := callTool(t, s.handleGetRun, "get_run", map[string]any{"run_id": runID})
		require.False(t, isErr, out)
		assert.Equal(t, runID, out["id"])
		assert.Contains(t, out["high_signal_urls"], srv.URL+"/admin-panel")
		assert.NotContains(t, out, "error")

		full, isErr := callTool(t, s.handleGetRun, "get_run", map[string]any{"run_id": runID, "full": true})
		require.False(t, isErr)
		assert.Contains(t, full, "crawler")
		assert.Contains(t, full["total_urls"], srv.URL+"/about?x=1")

		_, isErr = callTool(t, s.handleGetRun, "get_run", map[string]any{"run_id": "nope"})
		assert.True(t, isErr)
	})

	t.Run("search_urls ranks by score", func(t *testing.T) {
		out, isErr := callTool(t, s.handleSearchURLs, "search_urls", map[string]any{"url": srv.URL, "query": "/A"})
		require.False(t, isErr, out)
		results := out["results"].([]any)
		require.Len(t, results, 2)
		assert.Equal(t, srv.URL+"/admin-panel", results[0].(map[string]any)["url"])
		assert.Equal(t, srv.URL+"/about?x=1", results[1].(map[string]any)["url"])

		out, _ = callTool(t, s.handleSearchURLs, "search_urls", map[string]any{"url": srv.URL, "query": "abc.png"})
		assert.Empty(t, out["results"], "low-signal assets are excluded")

		out, _ = callTool(t, s.handleSearchURLs, "search_urls", map[string]any{"url": srv.URL, "query": "/a", "max_results": 1})
		assert.Len(t, out["results"], 1)
		assert.EqualValues(t, 2, out["total_matches"])
	})
}

func TestScanTargetAlreadyRunning(t *testing.T) {
	s := newTestServer(t, false)

	job, err := s.jobManager.CreateJob("https://example.com/")
	require.NoError(t, err)
	s.jobManager.UpdateStatus(job.ID, JobStatusRunning, "")

	out, isErr := callTool(t, s.handleScanTarget, "scan_target", map[string]any{"url": "https://EXAMPLE.com"})
	require.False(t, isErr)
	assert.Equal(t, "already_running", out["status"])
	assert.Equal(t, job.ID, out["job_id"])
}

func TestHandleCancelJob(t *testing.T) {
	s := newTestServer(t, false)

	job, err := s.jobManager.CreateJob("https://example.com/")
	require.NoError(t, err)

	out, isErr := callTool(t, s.handleCancelJob, "cancel_job", map[string]any{"job_id": job.ID})
	require.False(t, isErr, out)
	assert.Equal(t, string(JobStatusCancelled), out["status"])

	_, isErr = callTool(t, s.handleCancelJob, "cancel_job", map[string]any{"job_id": job.ID})
	assert.True(t, isErr, "second cancel reports the job is not running")

	_, isErr = callTool(t, s.handleCancelJob, "cancel_job", map[string]any{"job_id": "missing"})
	assert.True(t, isErr)
}

func TestHistoryToolsWithoutStore(t *testing.T) {
	s := newTestServer(t, false)
	for name, h := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_runs":   s.handleListRuns,
		"get_run":     s.handleGetRun,
		"search_urls": s.handleSearchURLs,
	} {
		out, isErr := callTool(t, h, name, map[string]any{"url": "https://example.com", "run_id": "x", "query": "a"})
		assert.True(t, isErr, name)
		assert.Contains(t, out["error"], "run store is disabled", name)
	}
}

func TestSearchURLsUnknownTarget(t *testing.T) {
	s := newTestServer(t, true)
	out, isErr := callTool(t, s.handleSearchURLs, "search_urls", map[string]any{"url": "https://example.com", "query": "a"})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "no runs stored")
}

func TestFormatJSON(t *testing.T) {
	assert.Contains(t, formatJSON(map[string]interface{}{"a": 1}), `"a": 1`)
	assert.Contains(t, formatJSON(map[string]interface{}{"bad": make(chan int)}), `"error"`)
}
