package record

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rauletepaz/account-verifactu/pkg/platform/sentinel"
)

// InMemoryStore is the ledger store used by tests and dev mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*FiscalRecord
	order   []uuid.UUID
	seq     int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]*FiscalRecord)}
}

func (s *InMemoryStore) Save(_ context.Context, r *FiscalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.seq++
	r.Seq = s.seq
	s.records[r.ID] = r.Clone()
	s.order = append(s.order, r.ID)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, r *FiscalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.State.Chainable() && !legallyEqual(existing, r) {
		return sentinel.ErrImmutable
	}
	cp := r.Clone()
	cp.Seq = existing.Seq
	s.records[r.ID] = cp
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id uuid.UUID) (*FiscalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) LatestSent(_ context.Context, issuerID string, lane Lane) (*FiscalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest(func(r *FiscalRecord) bool {
		return r.IssuerID == issuerID && r.Lane() == lane && r.Terminal()
	})
}

func (s *InMemoryStore) LatestChainable(_ context.Context, issuerID string, lane Lane) (*FiscalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest(func(r *FiscalRecord) bool {
		return r.IssuerID == issuerID && r.Lane() == lane && r.State.Chainable()
	})
}

func (s *InMemoryStore) LatestAcceptedForInvoice(_ context.Context, issuerID string, lane Lane, invoiceID string) (*FiscalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest(func(r *FiscalRecord) bool {
		return r.IssuerID == issuerID && r.Lane() == lane &&
			r.SourceInvoiceID == invoiceID && r.State.Chainable()
	})
}

func (s *InMemoryStore) ListByState(_ context.Context, state State) ([]*FiscalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*FiscalRecord
	for _, id := range s.order {
		if r := s.records[id]; r.State == state {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// latest picks the matching record with the highest (sentAt, generatedAt,
// seq) ordering, the lane ordering the chain linker depends on.
func (s *InMemoryStore) latest(match func(*FiscalRecord) bool) (*FiscalRecord, error) {
	var best *FiscalRecord
	for _, id := range s.order {
		r := s.records[id]
		if !match(r) {
			continue
		}
		if best == nil || laneLess(best, r) {
			best = r
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return best.Clone(), nil
}

func laneLess(a, b *FiscalRecord) bool {
	sa, sb := sentAtOrZero(a), sentAtOrZero(b)
	if !sa.Equal(sb) {
		return sa.Before(sb)
	}
	if !a.GeneratedAt.Equal(b.GeneratedAt) {
		return a.GeneratedAt.Before(b.GeneratedAt)
	}
	return a.Seq < b.Seq
}

func sentAtOrZero(r *FiscalRecord) time.Time {
	if r.SentAt == nil {
		return time.Time{}
	}
	return *r.SentAt
}

func legallyEqual(a, b *FiscalRecord) bool {
	if a.Fingerprint != b.Fingerprint ||
		a.PreviousFingerprint != b.PreviousFingerprint ||
		!a.GeneratedAt.Equal(b.GeneratedAt) ||
		len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}
