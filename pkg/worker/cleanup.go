package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/patient-intake/internal/repository"
	"github.com/jwalitptl/patient-intake/pkg/logger"
)

// OutboxCleanupWorker purges processed outbox events past their retention.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, log *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    log,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce deletes events processed before now minus the retention.
func (w *OutboxCleanupWorker) RunOnce(ctx context.Context, now time.Time) {
	deleted, err := w.repo.DeleteProcessedBefore(ctx, now.Add(-w.retention))
	if err != nil {
		w.logger.Error(err, "Failed to clean up outbox events")
		return
	}
	if deleted > 0 {
		w.logger.Info("Cleaned up outbox events", "deleted", deleted)
	}
}
