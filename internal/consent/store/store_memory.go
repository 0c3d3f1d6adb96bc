package store

import (
	"context"
	"sync"
	"time"

	"onboard/internal/consent/models"
	"onboard/pkg/domain"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	consents map[domain.ProcessID][]models.ConsentRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{consents: make(map[domain.ProcessID][]models.ConsentRecord)}
}

func (s *InMemoryStore) Save(_ context.Context, record models.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[record.ProcessID] = append(s.consents[record.ProcessID], record)
	return nil
}

func (s *InMemoryStore) ListByProcess(_ context.Context, processID domain.ProcessID) ([]models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ConsentRecord{}, s.consents[processID]...), nil
}

// Revoke marks every active record for purpose as revoked and reports how many changed.
func (s *InMemoryStore) Revoke(_ context.Context, processID domain.ProcessID, purpose domain.ConsentPurpose, revokedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.consents[processID]
	n := 0
	for i := range records {
		if records[i].Purpose == purpose && records[i].RevokedAt == nil {
			at := revokedAt
			records[i].RevokedAt = &at
			n++
		}
	}
	return n, nil
}
