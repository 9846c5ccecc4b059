package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	rostermodels "educaid/internal/roster/models"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (s *recordingSender) Send(_ context.Context, email, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[email] {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, email)
	return nil
}

func TestDistributionOpenedFanOut(t *testing.T) {
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(sender, logger, 4)

	recipients := []*rostermodels.Student{
		{ID: "s1", Email: "s1@example.org"},
		{ID: "s2", Email: "s2@example.org"},
		{ID: "s3", Email: "s3@example.org"},
	}
	sent := d.DistributionOpened(context.Background(), recipients, "1st Semester 2025-2026")
	assert.Equal(t, 3, sent)
	assert.Len(t, sender.sent, 3)
}

func TestDistributionOpenedToleratesFailures(t *testing.T) {
	sender := &recordingSender{failFor: map[string]bool{"s2@example.org": true}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(sender, logger, 2)

	recipients := []*rostermodels.Student{
		{ID: "s1", Email: "s1@example.org"},
		{ID: "s2", Email: "s2@example.org"},
		{ID: "s3", Email: "s3@example.org"},
	}
	sent := d.DistributionOpened(context.Background(), recipients, "2nd Semester 2025-2026")
	assert.Equal(t, 2, sent)
}

func TestDistributionOpenedEmpty(t *testing.T) {
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(sender, logger, 0)
	assert.Zero(t, d.DistributionOpened(context.Background(), nil, "1st Semester 2025-2026"))
}
