package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"onboard/internal/process/models"
	"onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// InMemoryStore keeps processes and customers in maps guarded by one mutex.
// Records are cloned on the way in and out so a reader never observes a
// half-applied write.
type InMemoryStore struct {
	mu        sync.RWMutex
	processes map[domain.ProcessID]*models.OnboardingProcess
	customers map[domain.CustomerID]*models.CustomerProfile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		processes: make(map[domain.ProcessID]*models.OnboardingProcess),
		customers: make(map[domain.CustomerID]*models.CustomerProfile),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *models.OnboardingProcess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.processes[p.ID]; exists {
		return fmt.Errorf("process %s: %w", p.ID, sentinel.ErrAlreadyExists)
	}
	s.processes[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ProcessID) (*models.OnboardingProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, fmt.Errorf("process %s: %w", id, sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}

// ApplyStageResult commits u only when the stored status equals expected.
// A mismatch returns ErrConflict and leaves the record untouched.
func (s *InMemoryStore) ApplyStageResult(_ context.Context, id domain.ProcessID, u models.StageUpdate, expected models.Status) (*models.OnboardingProcess, error) {
	if err := checkTransition(id, u, expected); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, fmt.Errorf("process %s: %w", id, sentinel.ErrNotFound)
	}
	if p.Status != expected {
		return nil, fmt.Errorf("process %s is %s, expected %s: %w", id, p.Status, expected, sentinel.ErrConflict)
	}
	if p.IsExpiredAt(u.At) {
		return nil, fmt.Errorf("process %s: %w", id, sentinel.ErrExpired)
	}
	next := p.Clone()
	next.Apply(u)
	s.processes[id] = next
	return next.Clone(), nil
}

// ListActive returns non-terminal, unexpired process ids, oldest first.
func (s *InMemoryStore) ListActive(_ context.Context, now time.Time, limit int) ([]domain.ProcessID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]*models.OnboardingProcess, 0)
	for _, p := range s.processes {
		if !p.Status.IsTerminal() && !p.IsExpiredAt(now) {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	ids := make([]domain.ProcessID, len(active))
	for i, p := range active {
		ids[i] = p.ID
	}
	return ids, nil
}

// PurgeExpired deletes every process whose expiry time is at or before now
// and returns the deleted ids.
func (s *InMemoryStore) PurgeExpired(_ context.Context, now time.Time) ([]domain.ProcessID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged []domain.ProcessID
	for id, p := range s.processes {
		if p.IsExpiredAt(now) {
			delete(s.processes, id)
			purged = append(purged, id)
		}
	}
	return purged, nil
}

func (s *InMemoryStore) CreateCustomer(_ context.Context, c *models.CustomerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.customers[c.ID]; exists {
		return fmt.Errorf("customer %s: %w", c.ID, sentinel.ErrAlreadyExists)
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetCustomer(_ context.Context, id domain.CustomerID) (*models.CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// EnrichCustomer applies append-only additions. Overwriting a different
// existing value returns ErrConflict.
func (s *InMemoryStore) EnrichCustomer(_ context.Context, id domain.CustomerID, e models.Enrichment, now time.Time) (*models.CustomerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, sentinel.ErrNotFound)
	}
	next := *c
	if _, ok := next.Enrich(e, now); !ok {
		return nil, fmt.Errorf("customer %s nationality already set: %w", id, sentinel.ErrConflict)
	}
	s.customers[id] = &next
	cp := next
	return &cp, nil
}
