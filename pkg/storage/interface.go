package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/recon-crawler/pkg/models"
)

// RunStore persists scan run records between invocations
type RunStore interface {
	// SaveRun stores rec and makes it the latest run for its target
	SaveRun(rec *models.RunRecord) error

	// GetRun loads a run by id; a missing id wraps utils.ErrNotFound
	GetRun(id string) (*models.RunRecord, error)

	// LatestRun loads the most recently saved run for target; none wraps utils.ErrNotFound
	LatestRun(target string) (*models.RunRecord, error)

	// ListRuns returns up to limit summaries for target, newest first (limit <= 0 means all)
	ListRuns(target string, limit int) ([]models.RunSummary, error)

	// RunCount returns the number of stored runs across all targets
	RunCount() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database
	Close() error
}
