// Package snapshot persists the distribution snapshot ledger. Finalized rows
// are the immutable history of completed periods; at most one finalized row
// may exist per (academic year, semester).
package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"educaid/internal/cycle/models"
	"educaid/pkg/platform/sentinel"
)

// MemoryStore keeps the snapshot ledger in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*models.DistributionSnapshot
}

// NewMemory constructs an empty in-memory snapshot store.
func NewMemory() *MemoryStore {
	return &MemoryStore{snapshots: make(map[uuid.UUID]*models.DistributionSnapshot)}
}

// Put inserts or replaces a snapshot. Used for seeding.
func (s *MemoryStore) Put(_ context.Context, snap *models.DistributionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	s.snapshots[snap.ID] = copySnapshot(snap)
	return nil
}

// FindFinalized returns the finalized snapshot for the period, or
// sentinel.ErrNotFound when the period was never finalized.
func (s *MemoryStore) FindFinalized(_ context.Context, academicYear string, semester models.Semester) (*models.DistributionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.snapshots {
		if snap.Finalized() && snap.AcademicYear == academicYear && snap.Semester == semester {
			return copySnapshot(snap), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// LatestFinalized returns the finalized snapshot with the most recent
// distribution date, or sentinel.ErrNotFound when none exist.
func (s *MemoryStore) LatestFinalized(_ context.Context) (*models.DistributionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.DistributionSnapshot
	for _, snap := range s.snapshots {
		if !snap.Finalized() {
			continue
		}
		if latest == nil || snap.DistributionDate.After(latest.DistributionDate) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return copySnapshot(latest), nil
}

// FinalizedSemesters returns the distinct semesters of the year finalized
// after the given cutoff. A nil cutoff counts every finalized row.
func (s *MemoryStore) FinalizedSemesters(_ context.Context, academicYear string, after *time.Time) ([]models.Semester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[models.Semester]bool)
	for _, snap := range s.snapshots {
		if !snap.Finalized() || snap.AcademicYear != academicYear {
			continue
		}
		if after != nil && !snap.FinalizedAt.After(*after) {
			continue
		}
		seen[snap.Semester] = true
	}
	var out []models.Semester
	for _, sem := range []models.Semester{models.SemesterFirst, models.SemesterSecond} {
		if seen[sem] {
			out = append(out, sem)
		}
	}
	return out, nil
}

// ListFinalized returns finalized snapshots, most recently finalized first,
// capped at limit. A non-positive limit returns everything.
func (s *MemoryStore) ListFinalized(_ context.Context, limit int) ([]*models.DistributionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DistributionSnapshot
	for _, snap := range s.snapshots {
		if snap.Finalized() {
			out = append(out, copySnapshot(snap))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinalizedAt.After(*out[j].FinalizedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Finalize records the finalized snapshot for the period. An existing draft
// row for the period is promoted in place; a new row is created otherwise.
// Returns sentinel.ErrConflict when the period already has a finalized row.
func (s *MemoryStore) Finalize(_ context.Context, snap *models.DistributionSnapshot, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var draft *models.DistributionSnapshot
	for _, existing := range s.snapshots {
		if existing.AcademicYear != snap.AcademicYear || existing.Semester != snap.Semester {
			continue
		}
		if existing.Finalized() {
			return sentinel.ErrConflict
		}
		draft = existing
	}
	finalizedAt := now
	if draft != nil {
		draft.DistributionDate = snap.DistributionDate
		draft.TotalStudents = snap.TotalStudents
		draft.Location = snap.Location
		draft.Notes = snap.Notes
		draft.FinalizedAt = &finalizedAt
		return nil
	}
	record := copySnapshot(snap)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.FinalizedAt = &finalizedAt
	s.snapshots[record.ID] = record
	return nil
}

// Snapshot captures a deep copy of the store state for transactional rollback.
func (s *MemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(map[uuid.UUID]*models.DistributionSnapshot, len(s.snapshots))
	for id, snap := range s.snapshots {
		state[id] = copySnapshot(snap)
	}
	return state
}

// Restore replaces the store state with a snapshot taken earlier.
func (s *MemoryStore) Restore(snapshot any) {
	state, ok := snapshot.(map[uuid.UUID]*models.DistributionSnapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = state
}

func copySnapshot(snap *models.DistributionSnapshot) *models.DistributionSnapshot {
	c := *snap
	if snap.FinalizedAt != nil {
		t := *snap.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}
