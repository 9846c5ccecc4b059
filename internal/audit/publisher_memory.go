package audit

import (
	"context"
	"sync"
)

// MemoryPublisher keeps events in process memory. Used in tests and when no
// Kafka brokers are configured.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemory constructs an empty in-memory publisher.
func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Event(nil), p.events...)
}
