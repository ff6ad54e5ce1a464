package importer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
)

// Worker polls for queued jobs and runs them with bounded concurrency. One
// worker per process; jobs are claimed by moving them out of queued, so a
// crashed worker leaves resumable rows behind rather than duplicates.
type Worker struct {
	o            *Orchestrator
	sem          *semaphore.Weighted
	pollInterval time.Duration
	// retention prunes terminal jobs older than this; zero disables pruning.
	retention time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	Retention    time.Duration
}

func NewWorker(o *Orchestrator, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Worker{
		o:            o,
		sem:          semaphore.NewWeighted(int64(cfg.Concurrency)),
		pollInterval: cfg.PollInterval,
		retention:    cfg.Retention,
		inflight:     map[string]struct{}{},
	}
}

// Start runs the polling loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
	if w.retention > 0 {
		go w.pruneLoop(ctx)
	}
}

func (w *Worker) loop(ctx context.Context) {
	t := time.NewTicker(w.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.dispatch(ctx)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context) {
	jobs, err := w.o.jobs.List(dbctx.Context{Ctx: ctx}, domain.StatusQueued, 10, 0)
	if err != nil {
		w.o.log.Warn("poll for queued jobs failed", "error", err)
		return
	}
	for _, job := range jobs {
		id := job.ID
		w.mu.Lock()
		if _, running := w.inflight[id.String()]; running {
			w.mu.Unlock()
			continue
		}
		if !w.sem.TryAcquire(1) {
			w.mu.Unlock()
			return // pool full; the next tick picks the rest up
		}
		w.inflight[id.String()] = struct{}{}
		w.mu.Unlock()

		go func() {
			defer func() {
				w.sem.Release(1)
				w.mu.Lock()
				delete(w.inflight, id.String())
				w.mu.Unlock()
			}()
			if err := w.o.Run(ctx, id); err != nil {
				// Run only errors on stale rows (already claimed or not
				// queued anymore); nothing to do but note it.
				w.o.log.Debug("job run skipped", "job_id", id, "reason", err)
			}
		}()
	}
}

func (w *Worker) pruneLoop(ctx context.Context) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cutoff := time.Now().UTC().Add(-w.retention)
			n, err := w.o.jobs.DeleteFinishedBefore(dbctx.Context{Ctx: ctx}, cutoff)
			if err != nil {
				w.o.log.Warn("job retention prune failed", "error", err)
				continue
			}
			if n > 0 {
				w.o.log.Info("pruned finished import jobs", "count", n, "cutoff", cutoff)
			}
		}
	}
}
