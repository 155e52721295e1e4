package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sriram-PR/recon-crawler/pkg/orchestrate"
	"github.com/Sriram-PR/recon-crawler/pkg/watch"
)

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional)")
	targets := fs.String("target", "", "Target URL, or comma-separated URLs (required)")
	interval := fs.String("interval", "24h", "Scan interval (e.g., 30m, 1h, 24h, 7d)")
	logLevel := fs.String("loglevel", "info", "Log level (trace, debug, info, warn, error, fatal)")
	var ov crawlOverrides
	fs.StringVar(&ov.outputDir, "output", "", "Output directory (overrides output_dir)")
	fs.BoolVar(&ov.insecure, "insecure", false, "Skip TLS certificate verification")
	fs.BoolVar(&ov.markdown, "markdown", false, "Also write a Markdown summary")
	fs.BoolVar(&ov.html, "html", false, "Also write an HTML summary")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: recon-crawler watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  recon-crawler watch -target https://example.com -interval 6h\n")
		fmt.Fprintf(os.Stderr, "  recon-crawler watch -target https://a.com,https://b.com -interval 1d\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *targets == "" {
		fmt.Fprintln(os.Stderr, "Error: -target is required")
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(executeWatch(*configFile, *targets, *interval, *logLevel, ov, os.Stderr))
}

// executeWatch rescans targets on an interval until interrupted.
// Watching without the run store would lose every diff, so it is always on.
func executeWatch(configFile, rawTargets, intervalStr, logLevelStr string, ov crawlOverrides, stderr io.Writer) int {
	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid interval: %v\n", err)
		return 1
	}
	targets, err := orchestrate.NormalizeTargets([]string{rawTargets})
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid targets: %v\n", err)
		return 1
	}

	log := setupLogger(logLevelStr)
	log.Infof("Watch interval: %s", watch.FormatInterval(interval))

	ov.noStore = false
	appCfg, err := loadAndValidateConfig(configFile, ov, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	if !appCfg.StoreEnabled() {
		enabled := true
		appCfg.EnableStore = &enabled
		log.Info("Run store enabled for watch")
	}
	logAppConfig(appCfg, log)

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

	scheduler := watch.NewScheduler(orch, appCfg.StateDir, targets, interval, log.WithField("component", "watch"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, stopping watch...", sig)
		scheduler.Stop()
	}()

	if err := scheduler.Run(); err != nil {
		log.Errorf("Watch scheduler error: %v", err)
		return 1
	}

	log.Info("Watch mode stopped")
	return 0
}
