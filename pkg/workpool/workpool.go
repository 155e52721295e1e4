// Package workpool runs a function over a fixed set of items with bounded
// concurrency. Workers drain a shared queue until it is empty; completion order
// is not defined, so callers merge per-item output under their own lock.
package workpool

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run applies fn to every item using min(len(items), maxWorkers) workers and
// blocks until the queue is drained. A panic in fn is logged and counts as a
// failed item; it never stops the other workers. Items left in the queue when
// ctx ends are skipped.
func Run[T any](ctx context.Context, log *logrus.Entry, items []T, maxWorkers int, fn func(ctx context.Context, item T)) {
	if len(items) == 0 {
		return
	}
	workers := maxWorkers
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	queue := make(chan T, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		workerLog := log.WithField("worker", w)
		g.Go(func() error {
			for item := range queue {
				if gctx.Err() != nil {
					return nil
				}
				runItem(gctx, workerLog, item, fn)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func runItem[T any](ctx context.Context, log *logrus.Entry, item T, fn func(ctx context.Context, item T)) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("item", fmt.Sprint(item)).Errorf("PANIC in work item: %v\n%s", r, debug.Stack())
		}
	}()
	fn(ctx, item)
}
