// Package pruner runs the analytics retention job. Events older than the
// configured window are deleted in bounded batches on a fixed schedule.
package pruner

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"onboardingportal/internal/analytics"
)

type Metrics interface {
	EventsPruned(count int64)
}

type Pruner struct {
	store     analytics.Store
	metrics   Metrics
	logger    *slog.Logger
	retention time.Duration
	batchSize int
	now       func() time.Time
}

func New(store analytics.Store, metrics Metrics, logger *slog.Logger, retention time.Duration, batchSize int) *Pruner {
	return &Pruner{
		store:     store,
		metrics:   metrics,
		logger:    logger,
		retention: retention,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start schedules the retention job and returns the running scheduler.
// Call Stop on it during shutdown.
func (p *Pruner) Start(ctx context.Context, interval time.Duration) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(interval).Do(func() {
		if err := p.RunOnce(ctx); err != nil {
			p.logger.ErrorContext(ctx, "analytics prune failed", "error", err)
		}
	})
	scheduler.StartAsync()
	return scheduler
}

// RunOnce deletes expired events in batches until a batch comes back short.
func (p *Pruner) RunOnce(ctx context.Context) error {
	cutoff := p.now().UTC().Add(-p.retention)

	var total int64
	for {
		deleted, err := p.store.DeleteOlderThan(ctx, cutoff, p.batchSize)
		if err != nil {
			return err
		}
		total += deleted
		if deleted < int64(p.batchSize) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if total > 0 {
		p.metrics.EventsPruned(total)
		p.logger.InfoContext(ctx, "pruned analytics events", "deleted", total, "cutoff", cutoff)
	}
	return nil
}
