// Package sweeper periodically purges expired graduate-review tokens so an
// abandoned review session cannot linger in the pending store.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// PendingPurger removes expired pending reviews. Returns the number removed.
type PendingPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper schedules the purge job.
type Sweeper struct {
	cron    *cron.Cron
	pending PendingPurger
	logger  *slog.Logger
}

// New constructs a sweeper over the pending store.
func New(pending PendingPurger, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cron:    cron.New(),
		pending: pending,
		logger:  logger,
	}
}

// Start schedules the purge every five minutes and begins the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("*/5 * * * *", s.purge)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.pending.PurgeExpired(ctx, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "pending review purge failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired pending reviews purged", "removed", removed)
	}
}
