package sync

import (
	"context"
	"log/slog"
	"time"
)

// Runner drives timer-based pulls in the background, independent of user
// actions. User-triggered pushes and a concurrent timer pull for the same
// project converge on idempotent upserts, so no cross-cancellation is
// needed.
type Runner struct {
	engine   *Engine
	interval time.Duration
	log      *slog.Logger
}

// NewRunner creates a runner pulling every interval.
func NewRunner(e *Engine, interval time.Duration, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{engine: e, interval: interval, log: log}
}

// Run pulls all projects immediately, then on every tick until ctx is
// cancelled. Failures are logged and retried on the next cycle, never
// busy-retried.
func (r *Runner) Run(ctx context.Context) {
	r.pullAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pullAll(ctx)
		}
	}
}

func (r *Runner) pullAll(ctx context.Context) {
	results, err := r.engine.PullAll(ctx)
	if err != nil {
		r.log.Error("sync cycle failed", "error", err)
		return
	}
	for _, res := range results {
		if res.Error != "" {
			r.log.Warn("project pull failed", "repo", res.Repo, "error", res.Error)
		} else {
			r.log.Debug("project pulled", "repo", res.Repo)
		}
	}
}
