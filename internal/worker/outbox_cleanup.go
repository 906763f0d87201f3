package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

// OutboxCleanupWorker purges delivered outbox rows older than the retention
// window on a cron schedule.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	schedule  string
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxCleanupWorker(
	repo repository.OutboxRepository,
	retention time.Duration,
	schedule string,
	log *logger.Logger,
	m *metrics.Metrics,
) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		schedule:  schedule,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// Start registers the job and blocks until ctx is cancelled. Runs already in
// flight are waited for before returning.
func (w *OutboxCleanupWorker) Start(ctx context.Context, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(w.schedule, func() {
		if _, err := w.Cleanup(ctx); err != nil {
			w.logger.Error(err, "Error cleaning up outbox events")
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", w.schedule, err)
	}

	c.Start()
	w.logger.Info("Outbox cleanup scheduled", "schedule", w.schedule, "retention", w.retention.String())

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Cleanup deletes processed rows older than the retention window.
func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	w.metrics.OutboxEventsPurged.Add(float64(rows))
	w.logger.Info("Cleaned up outbox events", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
