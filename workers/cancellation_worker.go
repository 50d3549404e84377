// Package workers runs the background jobs the HTTP surface does not drive.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/padelhub/match-system/services"
)

const sweepInterval = time.Minute

// CancellationWorker periodically cancels under-filled matches ahead of the
// lazy read-path reconciliation, so creators are notified promptly even when
// nobody is looking at the match.
type CancellationWorker struct {
	lifecycle *services.LifecycleService
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

func NewCancellationWorker(lifecycle *services.LifecycleService, logger *slog.Logger) *CancellationWorker {
	return &CancellationWorker{lifecycle: lifecycle, logger: logger}
}

func (w *CancellationWorker) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			if sweepErr := w.lifecycle.SweepCancellations(ctx); sweepErr != nil {
				w.logger.Error("cancellation sweep failed", slog.Any("error", sweepErr))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule cancellation sweep: %w", err)
	}

	w.scheduler = scheduler
	scheduler.Start()
	w.logger.Info("cancellation sweep started", slog.Duration("interval", sweepInterval))
	return nil
}

func (w *CancellationWorker) Stop() {
	if w.scheduler == nil {
		return
	}
	if err := w.scheduler.Shutdown(); err != nil {
		w.logger.Error("failed to stop cancellation sweep", slog.Any("error", err))
	}
}
