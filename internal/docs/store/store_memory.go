// Package store persists uploaded student documents and their per-period
// archives. Finalizing a cycle moves all live documents into the archive
// stamped with the closing period.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Document is one uploaded student document.
type Document struct {
	ID           uuid.UUID
	StudentID    string
	DocumentType string
	FilePath     string
	UploadedAt   time.Time
}

// ArchivedDocument is a document moved to the per-period archive.
type ArchivedDocument struct {
	Document
	AcademicYear string
	Semester     string
	ArchivedAt   time.Time
}

// MemoryStore keeps documents and archives in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	live     map[uuid.UUID]*Document
	archived []*ArchivedDocument
}

// NewMemory constructs an empty in-memory document store.
func NewMemory() *MemoryStore {
	return &MemoryStore{live: make(map[uuid.UUID]*Document)}
}

// Put inserts or replaces a live document. Used for seeding.
func (s *MemoryStore) Put(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	c := *doc
	s.live[doc.ID] = &c
	return nil
}

// ArchiveAll moves every live document to the archive stamped with the
// closing period. Returns the number archived.
func (s *MemoryStore) ArchiveAll(_ context.Context, academicYear, semester string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, doc := range s.live {
		s.archived = append(s.archived, &ArchivedDocument{
			Document:     *doc,
			AcademicYear: academicYear,
			Semester:     semester,
			ArchivedAt:   now,
		})
		delete(s.live, id)
		n++
	}
	return n, nil
}

// CountLive returns the number of live documents.
func (s *MemoryStore) CountLive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live), nil
}

// CountArchived returns the number of archived documents.
func (s *MemoryStore) CountArchived(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.archived), nil
}
