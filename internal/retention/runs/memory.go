package runs

import (
	"context"
	"sort"
	"sync"
	"time"

	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

// InMemoryStore keeps runs and outcomes in memory for local runs and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	runs     map[id.PurgeRunID]*Run
	outcomes map[id.TenantID][]Outcome
	resets   map[id.TenantID][]reset
}

// reset forgets the failures of key among the first `before` outcomes.
type reset struct {
	key    string
	before int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:     make(map[id.PurgeRunID]*Run),
		outcomes: make(map[id.TenantID][]Outcome),
		resets:   make(map[id.TenantID][]reset),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, run *Run) error {
	s.mu.Lock()
	if _, exists := s.runs[run.ID]; exists {
		s.mu.Unlock()
		return sentinel.ErrConflict
	}
	cp := *run
	s.runs[run.ID] = &cp
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.runs, run.ID)
	})
	return nil
}

func (s *InMemoryStore) AppendOutcome(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[o.RunID]; !ok {
		return sentinel.ErrNotFound
	}
	s.outcomes[o.TenantID] = append(s.outcomes[o.TenantID], o)
	return nil
}

// Finish stores the final status and totals of run.
func (s *InMemoryStore) Finish(ctx context.Context, run *Run) error {
	s.mu.Lock()
	prev, ok := s.runs[run.ID]
	if !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	cp := *run
	s.runs[run.ID] = &cp
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.runs[run.ID] = prev
	})
	return nil
}

// Ledger folds the tenant's outcomes. Resets apply at the point they were made.
func (s *InMemoryStore) Ledger(_ context.Context, tenantID id.TenantID) (*Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fold(tenantID), nil
}

func (s *InMemoryStore) fold(tenantID id.TenantID) *Ledger {
	resets := s.resets[tenantID]
	if len(resets) == 0 {
		return BuildLedger(s.outcomes[tenantID])
	}
	l := NewLedger()
	for i, o := range s.outcomes[tenantID] {
		for len(resets) > 0 && resets[0].before == i {
			l.Reset(resets[0].key)
			resets = resets[1:]
		}
		l.Observe(o)
	}
	for _, r := range resets {
		l.Reset(r.key)
	}
	return l
}

// ResetAttempts forgets the failed attempts of an unsettled record. It
// returns sentinel.ErrNotFound when the record has none.
func (s *InMemoryStore) ResetAttempts(ctx context.Context, tenantID id.TenantID, recordType, recordID string) error {
	key := Key(recordType, recordID)
	s.mu.Lock()
	if s.fold(tenantID).Attempts(key) == 0 {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	s.resets[tenantID] = append(s.resets[tenantID], reset{key: key, before: len(s.outcomes[tenantID])})
	n := len(s.resets[tenantID])
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.resets[tenantID] = s.resets[tenantID][:n-1]
	})
	return nil
}

// List returns the tenant's runs newest first. A limit of zero or less
// returns every run.
func (s *InMemoryStore) List(_ context.Context, tenantID id.TenantID, limit int) ([]*Run, error) {
	s.mu.RLock()
	out := make([]*Run, 0)
	for _, r := range s.runs {
		if r.TenantID == tenantID {
			cp := *r
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkInterrupted closes the tenant's RUNNING runs left behind by a crashed
// worker, recounting their totals from the stored outcomes, and returns how
// many were closed.
func (s *InMemoryStore) MarkInterrupted(_ context.Context, tenantID id.TenantID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.runs {
		if r.TenantID != tenantID || r.Status != StatusRunning {
			continue
		}
		r.Succeeded, r.NotFound, r.Failed = 0, 0, 0
		for _, o := range s.outcomes[tenantID] {
			if o.RunID == r.ID {
				r.Count(o.Status)
			}
		}
		r.Finish(now, true)
		n++
	}
	return n, nil
}
