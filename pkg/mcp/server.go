package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
	"github.com/Sriram-PR/recon-crawler/pkg/orchestrate"
	"github.com/Sriram-PR/recon-crawler/pkg/score"
	"github.com/Sriram-PR/recon-crawler/pkg/target"
)

const (
	serverName    = "recon-crawler"
	serverVersion = "0.4.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig // must already be validated
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes scanning and run history as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	orch       *orchestrate.Orchestrator
	profiler   *target.Profiler
	scorer     *score.Scorer
}

// NewServer creates a new MCP server instance and opens the shared scan resources
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log := cfg.Logger.WithField("component", "mcp")

	scorer, err := score.NewScorer(cfg.AppConfig.Crawl)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrate.NewOrchestrator(cfg.AppConfig, log)
	if err != nil {
		return nil, err
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        log,
		jobManager: NewJobManager(),
		orch:       orch,
		profiler:   target.NewProfiler(orch.Fetcher(), log.WithField("component", "profiler")),
		scorer:     scorer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{mcp.NewTool("profile_target",
			mcp.WithDescription("Probe a URL once and classify its redirect (none, http->https, same-scope, cross-scope) and whether a scan would re-anchor"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http(s) target URL")),
		), s.handleProfileTarget},
		{mcp.NewTool("scan_target",
			mcp.WithDescription("Start a background recon scan of a target. Returns immediately with a job ID."),
			mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http(s) target URL")),
		), s.handleScanTarget},
		{mcp.NewTool("get_job_status",
			mcp.WithDescription("Get the status of a scan job"),
			mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by scan_target")),
		), s.handleGetJobStatus},
		{mcp.NewTool("cancel_job",
			mcp.WithDescription("Cancel a pending or running scan job"),
			mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by scan_target")),
		), s.handleCancelJob},
		{mcp.NewTool("list_runs",
			mcp.WithDescription("List stored scan runs for a target, newest first"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Target URL as scanned")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default: 10)")),
		), s.handleListRuns},
		{mcp.NewTool("get_run",
			mcp.WithDescription("Get a stored run: summary with high-signal URLs and diff, or the full record"),
			mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID")),
			mcp.WithBoolean("full", mcp.Description("Return the complete run record")),
		), s.handleGetRun},
		{mcp.NewTool("search_urls",
			mcp.WithDescription("Search the URLs found by the latest scan of a target, ranked by relevance score"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Target URL as scanned")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Case-insensitive substring to match")),
			mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return (default: 10, max: 100)")),
		), s.handleSearchURLs},
	}

	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, t.handler)
	}
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs and releases the run store
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return s.orch.Close()
}
