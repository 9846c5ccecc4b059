// Package pending persists graduate-review tokens keyed by period. Entries
// expire after a TTL so a stale review session cannot apply a decision
// against a roster that has since changed.
package pending

import (
	"context"
	"sync"
	"time"

	"educaid/internal/cycle/models"
	"educaid/pkg/platform/sentinel"
	"educaid/pkg/requestcontext"
)

// MemoryStore keeps pending reviews in process memory with lazy expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	pending map[string]*models.PendingReview
}

// NewMemory constructs an empty in-memory pending review store.
func NewMemory() *MemoryStore {
	return &MemoryStore{pending: make(map[string]*models.PendingReview)}
}

// Put stores the review under its period key, replacing any previous review
// for the same period.
func (s *MemoryStore) Put(_ context.Context, review *models.PendingReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[review.Key()] = copyReview(review)
	return nil
}

// Find returns the pending review for the period. Returns
// sentinel.ErrNotFound when none exists and sentinel.ErrExpired when the
// review window has lapsed.
func (s *MemoryStore) Find(ctx context.Context, academicYear string, semester models.Semester) (*models.PendingReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	review, ok := s.pending[models.PeriodKey(academicYear, semester)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if review.Expired(requestcontext.Now(ctx)) {
		return nil, sentinel.ErrExpired
	}
	return copyReview(review), nil
}

// Delete removes the pending review for the period, if any.
func (s *MemoryStore) Delete(_ context.Context, academicYear string, semester models.Semester) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, models.PeriodKey(academicYear, semester))
	return nil
}

// PurgeExpired drops reviews whose window lapsed before now. Returns the
// number removed.
func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, review := range s.pending {
		if review.Expired(now) {
			delete(s.pending, key)
			removed++
		}
	}
	return removed, nil
}

func copyReview(review *models.PendingReview) *models.PendingReview {
	c := *review
	c.GraduateIDs = append([]string(nil), review.GraduateIDs...)
	if review.DocumentsDeadline != nil {
		d := *review.DocumentsDeadline
		c.DocumentsDeadline = &d
	}
	return &c
}
