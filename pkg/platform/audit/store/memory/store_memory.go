package memory

import (
	"context"
	"sync"

	"onboard/pkg/domain"
	audit "onboard/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.ProcessID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.ProcessID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ProcessID] = append(s.events[event.ProcessID], event)
	return nil
}

func (s *InMemoryStore) ListByProcess(_ context.Context, processID domain.ProcessID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[processID]...), nil
}

// Clear drops all events (tests).
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[domain.ProcessID][]audit.Event)
}
