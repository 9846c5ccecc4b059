// Package store provides the roster persistence implementations. The memory
// store backs tests and single-node deployments; the Postgres store is the
// production path.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"educaid/internal/roster/models"
)

// MemoryStore keeps the roster in process memory. All reads and writes work
// on copies so callers cannot mutate shared state.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]*models.Student
	history  []*models.StatusHistoryEntry
}

// NewMemory constructs an empty in-memory roster store.
func NewMemory() *MemoryStore {
	return &MemoryStore{students: make(map[string]*models.Student)}
}

// Put inserts or replaces a student record. Used for seeding.
func (s *MemoryStore) Put(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.ID] = copyStudent(student)
	return nil
}

// Get returns a copy of the student, or nil when unknown.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.students[id]; ok {
		return copyStudent(st), nil
	}
	return nil, nil
}

// ListGraduating returns the enrolled graduating students whose current
// status year predates the target academic year, ordered by ID.
func (s *MemoryStore) ListGraduating(_ context.Context, targetYear string) ([]*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Student
	for _, st := range s.students {
		if st.IsGraduating && st.Enrolled() && st.StatusAcademicYear < targetYear {
			out = append(out, copyStudent(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Archive marks the student archived with the given reason.
func (s *MemoryStore) Archive(_ context.Context, id, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil
	}
	st.Status = models.StudentArchived
	st.IsArchived = true
	st.ArchiveReason = reason
	st.UpdatedAt = now
	return nil
}

// AppendStatusHistory records one status transition.
func (s *MemoryStore) AppendStatusHistory(_ context.Context, entry *models.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	s.history = append(s.history, &e)
	return nil
}

// HistoryFor returns the recorded transitions for one student, oldest first.
func (s *MemoryStore) HistoryFor(_ context.Context, studentID string) ([]*models.StatusHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StatusHistoryEntry
	for _, e := range s.history {
		if e.StudentID == studentID {
			entry := *e
			out = append(out, &entry)
		}
	}
	return out, nil
}

// FlagAllForReupload marks every enrolled student as needing a fresh document
// upload of the given types. Returns the number of students flagged.
func (s *MemoryStore) FlagAllForReupload(_ context.Context, docTypes []string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flagged := 0
	for _, st := range s.students {
		if !st.Enrolled() {
			continue
		}
		st.NeedsDocumentUpload = true
		st.DocumentsToReupload = append([]string(nil), docTypes...)
		st.UpdatedAt = now
		flagged++
	}
	return flagged, nil
}

// CountByStatus counts non-archived students in the given status.
func (s *MemoryStore) CountByStatus(_ context.Context, status models.StudentStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.students {
		if !st.IsArchived && st.Status == status {
			n++
		}
	}
	return n, nil
}

// ListNotifiable returns enrolled students with a contact email, ordered by ID.
func (s *MemoryStore) ListNotifiable(_ context.Context) ([]*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Student
	for _, st := range s.students {
		if st.Enrolled() && st.Email != "" {
			out = append(out, copyStudent(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Snapshot captures a deep copy of the store state for transactional rollback.
func (s *MemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make(map[string]*models.Student, len(s.students))
	for id, st := range s.students {
		students[id] = copyStudent(st)
	}
	history := make([]*models.StatusHistoryEntry, len(s.history))
	for i, e := range s.history {
		entry := *e
		history[i] = &entry
	}
	return &memoryRosterState{students: students, history: history}
}

// Restore replaces the store state with a snapshot taken earlier.
func (s *MemoryStore) Restore(snapshot any) {
	state, ok := snapshot.(*memoryRosterState)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = state.students
	s.history = state.history
}

type memoryRosterState struct {
	students map[string]*models.Student
	history  []*models.StatusHistoryEntry
}

func copyStudent(st *models.Student) *models.Student {
	c := *st
	c.DocumentsToReupload = append([]string(nil), st.DocumentsToReupload...)
	return &c
}
