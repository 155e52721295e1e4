package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
	"github.com/Sriram-PR/recon-crawler/pkg/orchestrate"
	"github.com/Sriram-PR/recon-crawler/pkg/storage"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("recon-crawler %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `recon-crawler - Single-page reconnaissance crawler

Usage:
  recon-crawler <command> [options]

Commands:
  crawl       Scan one or more targets
  watch       Rescan targets on an interval and report surface changes
  history     List stored runs for a target
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'recon-crawler <command> -h' for command-specific help.`)
}

// loadConfig loads the config file; an empty path yields defaults only
func loadConfig(path string) (*config.AppConfig, error) {
	return config.Load(path)
}

// crawlOverrides carries CLI flags that take precedence over the config file
type crawlOverrides struct {
	outputDir string
	noStore   bool
	insecure  bool
	yaml      bool
	markdown  bool
	html      bool
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional)")
	targets := fs.String("target", "", "Target URL, or comma-separated URLs (required)")
	logLevel := fs.String("loglevel", "info", "Log level (trace, debug, info, warn, error, fatal)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	var ov crawlOverrides
	fs.StringVar(&ov.outputDir, "output", "", "Output directory (overrides output_dir)")
	fs.BoolVar(&ov.noStore, "no-store", false, "Do not persist runs or diff against previous runs")
	fs.BoolVar(&ov.insecure, "insecure", false, "Skip TLS certificate verification")
	fs.BoolVar(&ov.yaml, "yaml", false, "Also write the run record as YAML")
	fs.BoolVar(&ov.markdown, "markdown", false, "Also write a Markdown summary")
	fs.BoolVar(&ov.html, "html", false, "Also write an HTML summary")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: recon-crawler crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  recon-crawler crawl -target https://example.com\n")
		fmt.Fprintf(os.Stderr, "  recon-crawler crawl -target https://a.com,https://b.com -markdown\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *targets == "" {
		fmt.Fprintln(os.Stderr, "Error: -target is required")
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(executeCrawl(*configFile, *targets, *logLevel, *pprofAddr, ov))
}

// executeCrawl runs the orchestrator and returns the process exit code
func executeCrawl(configFile, rawTargets, logLevelStr, pprofAddr string, ov crawlOverrides) int {
	log := setupLogger(logLevelStr)
	appCfg, err := loadAndValidateConfig(configFile, ov, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	logAppConfig(appCfg, log)

	targets, err := orchestrate.NormalizeTargets([]string{rawTargets})
	if err != nil {
		log.Errorf("Invalid targets: %v", err)
		return 1
	}

	startPprof(pprofAddr, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	orch, err := orchestrate.NewOrchestrator(appCfg, log.WithField("component", "orchestrator"))
	if err != nil {
		log.Errorf("Failed to initialize: %v", err)
		return 1
	}
	defer func() {
		if err := orch.Close(); err != nil {
			log.Errorf("Closing run store: %v", err)
		}
	}()

	results := orch.Run(ctx, targets)

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("Scan cancelled.")
		return 1
	}
	for _, r := range results {
		if !r.Success() {
			return 1
		}
	}
	return 0
}

// runHistory handles the history subcommand
func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional)")
	target := fs.String("target", "", "Target URL (required unless -run is given)")
	runID := fs.String("run", "", "Print the full record of one run as JSON")
	limit := fs.Int("limit", 20, "Maximum number of runs to list (0 = all)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: recon-crawler history [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doHistory(*configFile, *target, *runID, *limit, os.Stdout, os.Stderr))
}

// doHistory lists stored runs (or prints one) and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doHistory(configPath, target, runID string, limit int, stdout, stderr io.Writer) int {
	if target == "" && runID == "" {
		fmt.Fprintln(stderr, "Error: -target or -run is required")
		return 1
	}

	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := appCfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	store, err := storage.NewBadgerStore(appCfg.StateDir, logrus.NewEntry(quiet))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	if runID != "" {
		rec, err := store.GetRun(runID)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(data))
		return 0
	}

	normalized, err := orchestrate.NormalizeTargets([]string{target})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	runs, err := store.ListRuns(normalized[0], limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Runs for %s:\n\n", normalized[0])
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "  (none)")
		return 0
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "  %s  %s  urls=%d high_signal=%d\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.ID, r.TotalURLs, r.HighSignal)
		if r.Error != "" {
			fmt.Fprintf(stdout, "    error: %s\n", r.Error)
		}
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: recon-crawler validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	l := appCfg.Crawl
	fmt.Fprintf(stdout, "OK: redirects=%d sitemaps=%d sitemap_urls=%d js_targets=%d js_urls=%d/%d workers=%d\n",
		l.MaxRedirects, l.MaxSitemaps, l.MaxSitemapURLs, l.MaxJSTargets, l.MaxJSURLsPerFile, l.MaxJSURLsTotal, l.MaxFetchWorkers)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// loadAndValidateConfig loads the config file, applies CLI overrides, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, ov crawlOverrides, log *logrus.Logger) (*config.AppConfig, error) {
	if configFile != "" {
		log.Infof("Loading configuration from %s", configFile)
	}
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(appCfg, ov, log)

	appWarnings, err := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// applyOverrides applies CLI flag overrides on top of the config file
func applyOverrides(appCfg *config.AppConfig, ov crawlOverrides, log *logrus.Logger) {
	if ov.outputDir != "" {
		appCfg.OutputDir = ov.outputDir
	}
	if ov.noStore {
		disabled := false
		appCfg.EnableStore = &disabled
		log.Info("Run store disabled via CLI flag")
	}
	if ov.insecure {
		verify := false
		appCfg.VerifySSL = &verify
	}
	appCfg.WriteYAML = appCfg.WriteYAML || ov.yaml
	appCfg.WriteMarkdown = appCfg.WriteMarkdown || ov.markdown
	appCfg.WriteHTML = appCfg.WriteHTML || ov.html
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Global Config: UA:%q, VerifySSL:%t, Timeout:%v, MaxBody:%d bytes",
		appCfg.UserAgent, appCfg.ShouldVerifySSL(), appCfg.RequestTimeout, appCfg.MaxBodyBytes)
	log.Infof("Global Config: ParallelTargets:%d, MaxReqPerHost:%d, DefaultDelay:%v",
		appCfg.MaxParallelTargets, appCfg.MaxRequestsPerHost, appCfg.DefaultDelayPerHost)
	log.Infof("Global Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Global Config Output: Dir:%s, Store:%t at %s, YAML:%t, Markdown:%t, HTML:%t",
		appCfg.OutputDir, appCfg.StoreEnabled(), appCfg.StateDir, appCfg.WriteYAML, appCfg.WriteMarkdown, appCfg.WriteHTML)
	l := appCfg.Crawl
	log.Infof("Crawl Limits: Redirects:%d, Sitemaps:%d, SitemapURLs:%d, JSTargets:%d, JSURLs:%d/%d, Workers:%d, HighSignal:%d",
		l.MaxRedirects, l.MaxSitemaps, l.MaxSitemapURLs, l.MaxJSTargets, l.MaxJSURLsPerFile, l.MaxJSURLsTotal,
		l.MaxFetchWorkers, l.HighSignalLimit)
}
