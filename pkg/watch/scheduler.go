package watch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/orchestrate"
)

// Scanner runs a batch of scans; *orchestrate.Orchestrator satisfies it
type Scanner interface {
	Run(ctx context.Context, targets []string) []orchestrate.TargetResult
}

// Scheduler re-scans targets periodically so that surface changes show up as run diffs
type Scheduler struct {
	scanner      Scanner
	targets      []string
	interval     time.Duration
	log          *logrus.Entry
	stateManager *StateManager

	inFlight   map[string]bool
	inFlightMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new watch scheduler
func NewScheduler(scanner Scanner, stateDir string, targets []string, interval time.Duration, log *logrus.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		scanner:      scanner,
		targets:      targets,
		interval:     interval,
		log:          log,
		stateManager: NewStateManager(stateDir),
		inFlight:     make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run starts the watch scheduler and blocks until stopped
func (s *Scheduler) Run() error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode for %d targets with interval %v", len(s.targets), s.interval)
	s.logSchedule()

	s.runDueTargets()

	ticker := time.NewTicker(s.calculateTickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.runDueTargets()
		}
	}
}

// Stop stops the watch scheduler
func (s *Scheduler) Stop() {
	s.log.Info("Stopping watch scheduler...")
	s.cancel()
}

// runDueTargets scans every target that is due and not already being scanned
func (s *Scheduler) runDueTargets() {
	due := s.claimDueTargets()
	if len(due) == 0 {
		s.logNextRun()
		return
	}

	s.log.Infof("Running scan for %d due targets: %v", len(due), due)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(due)

		results := s.scanner.Run(s.ctx, due)
		for _, result := range results {
			state := stateFromResult(result)
			s.stateManager.UpdateTargetState(result.Target, state)
			if state.NewURLs > 0 || state.RemovedURLs > 0 {
				s.log.WithField("target", result.Target).Warnf("Surface changed: +%d -%d urls", state.NewURLs, state.RemovedURLs)
			}
		}

		if err := s.stateManager.Save(); err != nil {
			s.log.Errorf("Failed to save watch state: %v", err)
		}

		s.logNextRun()
	}()
}

// claimDueTargets returns due targets and marks them in flight
func (s *Scheduler) claimDueTargets() []string {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	var due []string
	for _, target := range s.targets {
		if s.inFlight[target] {
			continue
		}
		if s.stateManager.ShouldRun(target, s.interval) {
			s.inFlight[target] = true
			due = append(due, target)
		}
	}
	return due
}

func (s *Scheduler) release(targets []string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	for _, target := range targets {
		delete(s.inFlight, target)
	}
}

// stateFromResult condenses a scan result into persisted watch state
func stateFromResult(r orchestrate.TargetResult) TargetState {
	state := TargetState{LastRunSuccess: r.Success()}
	if r.Error != nil {
		state.ErrorMessage = r.Error.Error()
	}
	if rec := r.Record; rec != nil {
		state.LastRunID = rec.ID
		state.TotalURLs = len(rec.TotalURLs)
		state.NewURLs = len(rec.NewURLs)
		state.RemovedURLs = len(rec.RemovedURLs)
		if rec.Crawler != nil && rec.Crawler.Failed() {
			state.ErrorMessage = rec.Crawler.Error
		}
	}
	return state
}

// calculateTickInterval returns how often to check for due targets
func (s *Scheduler) calculateTickInterval() time.Duration {
	// Check at least every minute, or every 1/10th of the interval
	checkInterval := s.interval / 10
	if checkInterval < time.Minute {
		checkInterval = time.Minute
	}
	if checkInterval > 10*time.Minute {
		checkInterval = 10 * time.Minute
	}
	return checkInterval
}

// logSchedule logs the current schedule
func (s *Scheduler) logSchedule() {
	s.log.Info("Watch schedule:")
	for _, target := range s.targets {
		state, exists := s.stateManager.GetTargetState(target)
		if exists {
			nextRun := s.stateManager.GetNextRunTime(target, s.interval)
			status := "success"
			if !state.LastRunSuccess {
				status = "failed"
			}
			s.log.Infof("  %s: last run %v (%s, %d urls), next run %v",
				target,
				state.LastRunTime.Format(time.RFC3339),
				status,
				state.TotalURLs,
				nextRun.Format(time.RFC3339))
		} else {
			s.log.Infof("  %s: never run, will run immediately", target)
		}
	}
}

// logNextRun logs when the next run will occur
func (s *Scheduler) logNextRun() {
	var nextRuns []struct {
		target string
		time   time.Time
	}

	for _, target := range s.targets {
		nextRun := s.stateManager.GetNextRunTime(target, s.interval)
		nextRuns = append(nextRuns, struct {
			target string
			time   time.Time
		}{target, nextRun})
	}

	sort.Slice(nextRuns, func(i, j int) bool {
		return nextRuns[i].time.Before(nextRuns[j].time)
	})

	if len(nextRuns) > 0 {
		next := nextRuns[0]
		until := time.Until(next.time)
		if until < 0 {
			until = 0
		}
		s.log.Infof("Next scan: %s in %v (at %s)", next.target, until.Round(time.Second), next.time.Format("15:04:05"))
	}
}

// GetStatus returns the current status of all watched targets
func (s *Scheduler) GetStatus() map[string]TargetStatus {
	status := make(map[string]TargetStatus)

	for _, target := range s.targets {
		state, exists := s.stateManager.GetTargetState(target)
		status[target] = TargetStatus{
			TargetState: state,
			Target:      target,
			NextRunTime: s.stateManager.GetNextRunTime(target, s.interval),
			NeverRun:    !exists,
		}
	}

	return status
}

// TargetStatus contains the status of a watched target
type TargetStatus struct {
	TargetState
	Target      string
	NextRunTime time.Time
	NeverRun    bool
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	// Day suffix, optionally followed by a standard duration ("1d12h")
	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
