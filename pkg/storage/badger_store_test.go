package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeRun(id, target string, started time.Time, urls ...string) *models.RunRecord {
	return &models.RunRecord{
		ID:        id,
		Target:    target,
		StartedAt: started,
		Crawler: &models.CrawlResult{
			Target: models.TargetInfo{Original: target, Effective: target},
			Stats:  &models.Stats{TotalURLs: urls, HighSignalCount: 1},
		},
		TotalURLs: urls,
	}
}

func TestBadgerStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := makeRun("run-1", "http://example.com/", started, "http://example.com/a")
	rec.Headers = map[string]string{"Server": "nginx"}

	require.NoError(t, store.SaveRun(rec))

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/", got.Target)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, []string{"http://example.com/a"}, got.TotalURLs)
	assert.Equal(t, "nginx", got.Headers["Server"])
	require.NotNil(t, got.Crawler)
	assert.Equal(t, []string{"http://example.com/a"}, got.Crawler.TotalURLs())
}

func TestBadgerStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrNotFound))

	_, err = store.LatestRun("http://never-scanned.test/")
	assert.True(t, errors.Is(err, utils.ErrNotFound))
	assert.Equal(t, "Database_NotFound", utils.CategorizeError(err))
}

func TestBadgerStore_SaveValidation(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.SaveRun(nil))
	assert.Error(t, store.SaveRun(&models.RunRecord{ID: "x"}))
}

func TestBadgerStore_LatestAndList(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	target := "http://example.com/"

	require.NoError(t, store.SaveRun(makeRun("r1", target, base, "a")))
	require.NoError(t, store.SaveRun(makeRun("r2", target, base.Add(time.Hour), "a", "b")))
	require.NoError(t, store.SaveRun(makeRun("r3", target, base.Add(2*time.Hour), "b", "c", "d")))
	require.NoError(t, store.SaveRun(makeRun("other", "http://example.com/sub", base, "z")))

	latest, err := store.LatestRun(target)
	require.NoError(t, err)
	assert.Equal(t, "r3", latest.ID)

	all, err := store.ListRuns(target, 0)
	require.NoError(t, err)
	require.Len(t, all, 3, "prefix must not leak runs of a longer target")
	assert.Equal(t, "r3", all[0].ID)
	assert.Equal(t, "r2", all[1].ID)
	assert.Equal(t, "r1", all[2].ID)
	assert.Equal(t, 3, all[0].TotalURLs)
	assert.Equal(t, 1, all[0].HighSignal)

	limited, err := store.ListRuns(target, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := store.ListRuns("http://unknown.test/", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	count, err := store.RunCount()
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store1, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, store1.SaveRun(makeRun("keep", "http://example.com/", time.Now(), "a")))
	require.NoError(t, store1.Close())
	require.NoError(t, store1.Close(), "double close is a no-op")

	store2, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store2.Close() })

	got, err := store2.LatestRun("http://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
}

func TestBadgerStore_RunGCStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunGC(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after cancellation")
	}
}
