// Package notify fans out cycle announcements to enrolled students. Delivery
// is best-effort: failures are logged and counted, never propagated to the
// transition that triggered them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	rostermodels "educaid/internal/roster/models"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, email, subject, body string) error
}

// Dispatcher fans announcement sends out over a bounded worker pool.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	workers int
}

// NewDispatcher constructs a dispatcher. workers caps concurrent sends; a
// non-positive value falls back to 1.
func NewDispatcher(sender Sender, logger *slog.Logger, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{sender: sender, logger: logger, workers: workers}
}

// DistributionOpened announces a newly opened cycle to every recipient.
// Returns the number of successful sends; individual failures are logged.
func (d *Dispatcher) DistributionOpened(ctx context.Context, recipients []*rostermodels.Student, period string) int {
	if len(recipients) == 0 {
		return 0
	}
	subject := fmt.Sprintf("Distribution cycle opened: %s", period)
	body := fmt.Sprintf(
		"A new distribution cycle for %s has started. Please log in and re-upload your required documents before the deadline.",
		period)

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, r := range recipients {
		r := r
		g.Go(func() error {
			if err := d.sender.Send(gctx, r.Email, subject, body); err != nil {
				d.logger.WarnContext(gctx, "notification send failed",
					"student_id", r.ID, "error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load())
}

// LogSender is the default sender: it records the announcement in the log
// instead of delivering it. Real transports implement Sender.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, email, subject, _ string) error {
	s.Logger.InfoContext(ctx, "notification", "to", email, "subject", subject)
	return nil
}
