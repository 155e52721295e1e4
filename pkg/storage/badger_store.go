package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/log"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

const (
	runKeyPrefix    = "run:"    // run:<id> -> RunRecord JSON
	latestKeyPrefix = "latest:" // latest:<target> -> run id
	indexKeyPrefix  = "idx:"    // idx:<target>\x00<started nanos>\x00<id> -> empty
	runsDBDir       = "runs_db"
)

// BadgerStore implements RunStore using BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

var _ RunStore = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the run database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, runsDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogger(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	logger.WithField("path", dbPath).Debug("Run database opened")
	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate retries db.Update on transaction conflicts
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func indexPrefix(target string) []byte {
	return []byte(indexKeyPrefix + target + "\x00")
}

func indexKey(rec *models.RunRecord) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%020d\x00%s", indexKeyPrefix, rec.Target, rec.StartedAt.UnixNano(), rec.ID))
}

// SaveRun implements RunStore
func (s *BadgerStore) SaveRun(rec *models.RunRecord) error {
	if rec == nil || rec.ID == "" || rec.Target == "" {
		return fmt.Errorf("%w: run record needs id and target", utils.ErrDatabase)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal run '%s': %w", utils.ErrParsing, rec.ID, err)
	}

	err = s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(runKeyPrefix+rec.ID), data); err != nil {
			return err
		}
		if err := txn.Set(indexKey(rec), []byte{}); err != nil {
			return err
		}
		return txn.Set([]byte(latestKeyPrefix+rec.Target), []byte(rec.ID))
	})
	if err != nil {
		s.log.WithField("run_id", rec.ID).Errorf("DB Update error in SaveRun: %v", err)
		return fmt.Errorf("%w: saving run '%s': %w", utils.ErrDatabase, rec.ID, err)
	}
	s.log.WithFields(logrus.Fields{"run_id": rec.ID, "target": rec.Target}).Debug("Run saved")
	return nil
}

// GetRun implements RunStore
func (s *BadgerStore) GetRun(id string) (*models.RunRecord, error) {
	var rec *models.RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRunTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func getRunTxn(txn *badger.Txn, id string) (*models.RunRecord, error) {
	item, err := txn.Get([]byte(runKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: run '%s'", utils.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getting run '%s': %w", utils.ErrDatabase, id, err)
	}
	var rec models.RunRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decoding run '%s': %w", utils.ErrParsing, id, err)
	}
	return &rec, nil
}

// LatestRun implements RunStore
func (s *BadgerStore) LatestRun(target string) (*models.RunRecord, error) {
	var rec *models.RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKeyPrefix + target))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: no runs for target '%s'", utils.ErrNotFound, target)
		}
		if err != nil {
			return fmt.Errorf("%w: getting latest run for '%s': %w", utils.ErrDatabase, target, err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("%w: reading latest run id for '%s': %w", utils.ErrDatabase, target, err)
		}
		rec, err = getRunTxn(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns implements RunStore
func (s *BadgerStore) ListRuns(target string, limit int) ([]models.RunSummary, error) {
	var summaries []models.RunSummary
	prefix := indexPrefix(target)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id := string(key[len(prefix)+21:]) // 20 timestamp digits + separator
			rec, err := getRunTxn(txn, id)
			if err != nil {
				s.log.WithField("run_id", id).Warnf("Skipping unreadable run: %v", err)
				continue
			}
			summaries = append(summaries, rec.Summary())
			if limit > 0 && len(summaries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing runs for '%s': %w", utils.ErrDatabase, target, err)
	}
	return summaries, nil
}

// RunCount implements RunStore
func (s *BadgerStore) RunCount() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting runs: %w", utils.ErrDatabase, err)
	}
	return count, nil
}

// RunGC runs BadgerDB value log garbage collection every interval until ctx ends
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close closes the database
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing database: %w", utils.ErrDatabase, err)
	}
	return nil
}
