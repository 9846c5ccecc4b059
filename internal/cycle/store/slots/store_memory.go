// Package slots persists the interview signup slots retired when a cycle is
// finalized.
package slots

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Slot is one interview signup slot.
type Slot struct {
	ID            uuid.UUID
	Label         string
	IsActive      bool
	DeactivatedAt *time.Time
}

// MemoryStore keeps signup slots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]*Slot
}

// NewMemory constructs an empty in-memory slot store.
func NewMemory() *MemoryStore {
	return &MemoryStore{slots: make(map[uuid.UUID]*Slot)}
}

// Put inserts or replaces a slot. Used for seeding.
func (s *MemoryStore) Put(_ context.Context, slot *Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	c := *slot
	s.slots[slot.ID] = &c
	return nil
}

// DeactivateAll retires every active slot. Returns the number deactivated.
func (s *MemoryStore) DeactivateAll(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slot := range s.slots {
		if slot.IsActive {
			slot.IsActive = false
			t := now
			slot.DeactivatedAt = &t
			n++
		}
	}
	return n, nil
}

// AnyActive reports whether at least one active slot remains.
func (s *MemoryStore) AnyActive(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, slot := range s.slots {
		if slot.IsActive {
			return true, nil
		}
	}
	return false, nil
}
