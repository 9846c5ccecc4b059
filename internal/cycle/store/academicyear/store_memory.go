// Package academicyear persists the academic period registry consulted by the
// advancement guard.
package academicyear

import (
	"context"
	"sync"

	"educaid/internal/cycle/models"
	"educaid/pkg/platform/sentinel"
)

// MemoryStore keeps the academic year registry in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	years map[string]*models.AcademicYearRecord
}

// NewMemory constructs an empty in-memory academic year store.
func NewMemory() *MemoryStore {
	return &MemoryStore{years: make(map[string]*models.AcademicYearRecord)}
}

// Upsert inserts or replaces a registry row.
func (s *MemoryStore) Upsert(_ context.Context, rec *models.AcademicYearRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.IsCurrent {
		for _, existing := range s.years {
			existing.IsCurrent = false
		}
	}
	s.years[rec.YearCode] = copyRecord(rec)
	return nil
}

// Current returns the registry row flagged as current, or
// sentinel.ErrNotFound when none is.
func (s *MemoryStore) Current(_ context.Context) (*models.AcademicYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.years {
		if rec.IsCurrent {
			return copyRecord(rec), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Find returns the registry row for the year code, or sentinel.ErrNotFound.
func (s *MemoryStore) Find(_ context.Context, yearCode string) (*models.AcademicYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.years[yearCode]; ok {
		return copyRecord(rec), nil
	}
	return nil, sentinel.ErrNotFound
}

// Snapshot captures a deep copy of the store state for transactional rollback.
func (s *MemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(map[string]*models.AcademicYearRecord, len(s.years))
	for code, rec := range s.years {
		state[code] = copyRecord(rec)
	}
	return state
}

// Restore replaces the store state with a snapshot taken earlier.
func (s *MemoryStore) Restore(snapshot any) {
	state, ok := snapshot.(map[string]*models.AcademicYearRecord)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.years = state
}

func copyRecord(rec *models.AcademicYearRecord) *models.AcademicYearRecord {
	c := *rec
	if rec.AdvancedAt != nil {
		t := *rec.AdvancedAt
		c.AdvancedAt = &t
	}
	return &c
}
