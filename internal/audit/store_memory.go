package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type Store interface {
	Append(ctx context.Context, e Entry) error
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]Entry, error)
}

// InMemoryStore is an append-only in-process trail.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID uuid.UUID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}
