// Package config persists the live cycle configuration singleton as a set of
// key/value pairs, mirroring the legacy config table layout.
package config

import (
	"context"
	"sync"

	"educaid/internal/cycle/models"
)

// MemoryStore keeps the cycle configuration in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	cfg *models.CycleConfig
}

// NewMemory constructs an empty in-memory config store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the current configuration, or nil when no cycle has
// ever been started.
func (s *MemoryStore) Load(_ context.Context) (*models.CycleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyConfig(s.cfg), nil
}

// Save upserts the full configuration.
func (s *MemoryStore) Save(_ context.Context, cfg *models.CycleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = copyConfig(cfg)
	return nil
}

// SetStatus updates only the lifecycle status key.
func (s *MemoryStore) SetStatus(_ context.Context, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		s.cfg = &models.CycleConfig{}
	}
	s.cfg.Status = status
	return nil
}

// Snapshot captures a deep copy of the store state for transactional rollback.
func (s *MemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyConfig(s.cfg)
}

// Restore replaces the store state with a snapshot taken earlier.
func (s *MemoryStore) Restore(snapshot any) {
	cfg, ok := snapshot.(*models.CycleConfig)
	if !ok && snapshot != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func copyConfig(cfg *models.CycleConfig) *models.CycleConfig {
	if cfg == nil {
		return nil
	}
	c := *cfg
	if cfg.DocumentsDeadline != nil {
		d := *cfg.DocumentsDeadline
		c.DocumentsDeadline = &d
	}
	return &c
}
