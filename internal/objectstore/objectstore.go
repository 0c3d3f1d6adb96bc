// Package objectstore holds the binary artifacts a process references
// (identity document scans, selfies), keyed by process id and purpose.
package objectstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

// Purpose names an artifact slot of a process.
type Purpose string

const (
	PurposeIDDocument Purpose = "id_document"
	PurposeSelfie     Purpose = "selfie"
)

// ParsePurpose accepts the slot names clients upload to.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(strings.ToLower(strings.TrimSpace(s))); p {
	case PurposeIDDocument, PurposeSelfie:
		return p, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unsupported document purpose "+s)
	}
}

// Store reads and writes artifacts. Get returns an error wrapping
// sentinel.ErrNotFound for a missing object.
type Store interface {
	Put(ctx context.Context, processID domain.ProcessID, purpose Purpose, data []byte) error
	Get(ctx context.Context, processID domain.ProcessID, purpose Purpose) ([]byte, error)
	DeleteProcess(ctx context.Context, processID domain.ProcessID) error
}

type objectKey struct {
	process domain.ProcessID
	purpose Purpose
}

// InMemoryStore keeps copies of written objects.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[objectKey][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[objectKey][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, processID domain.ProcessID, purpose Purpose, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey{processID, purpose}] = append([]byte(nil), data...)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, processID domain.ProcessID, purpose Purpose) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[objectKey{processID, purpose}]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", processID, purpose, sentinel.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *InMemoryStore) DeleteProcess(_ context.Context, processID domain.ProcessID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.objects {
		if k.process == processID {
			delete(s.objects, k)
		}
	}
	return nil
}
