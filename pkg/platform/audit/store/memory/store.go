package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	id "dataguard/pkg/domain"
	audit "dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/tx"
)

// InMemoryStore keeps one chain per tenant in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	chains map[id.TenantID][]audit.Event
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chains: make(map[id.TenantID][]audit.Event)}
}

// Append links ev to the tenant's head and stores a copy.
func (s *InMemoryStore) Append(ctx context.Context, ev *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[ev.TenantID]
	var headSeq int64
	var headHash string
	if n := len(chain); n > 0 {
		headSeq, headHash = chain[n-1].Seq, chain[n-1].Hash
	}
	audit.Link(ev, headSeq, headHash)
	s.chains[ev.TenantID] = append(chain, clone(*ev))

	tenantID, seq := ev.TenantID, ev.Seq
	tx.OnRollback(ctx, func() { s.truncate(tenantID, seq) })
	return nil
}

// truncate drops the tenant's head when it is the event at seq.
func (s *InMemoryStore) truncate(tenantID id.TenantID, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.chains[tenantID]
	if n := len(chain); n > 0 && chain[n-1].Seq == seq {
		s.chains[tenantID] = chain[:n-1]
	}
}

// List returns matching events, newest first.
func (s *InMemoryStore) List(_ context.Context, tenantID id.TenantID, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[tenantID]
	out := make([]audit.Event, 0)
	for i := len(chain) - 1; i >= 0; i-- {
		if !filter.Matches(chain[i]) {
			continue
		}
		out = append(out, clone(chain[i]))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Scan visits the tenant's events in ascending Seq order.
func (s *InMemoryStore) Scan(_ context.Context, tenantID id.TenantID, fn func(audit.Event) error) error {
	s.mu.RLock()
	chain := make([]audit.Event, len(s.chains[tenantID]))
	copy(chain, s.chains[tenantID])
	s.mu.RUnlock()

	sort.Slice(chain, func(i, j int) bool { return chain[i].Seq < chain[j].Seq })
	for _, ev := range chain {
		if err := fn(clone(ev)); err != nil {
			return err
		}
	}
	return nil
}

// CountByAction counts the tenant's events per action at or after since.
func (s *InMemoryStore) CountByAction(_ context.Context, tenantID id.TenantID, since time.Time) (map[audit.Action]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[audit.Action]int)
	for _, ev := range s.chains[tenantID] {
		if !since.IsZero() && ev.OccurredAt.Before(since) {
			continue
		}
		counts[ev.Action]++
	}
	return counts, nil
}

// Tamper rewrites the stored event at seq in place, bypassing the chain.
// Integrity tests use it to simulate storage corruption.
func (s *InMemoryStore) Tamper(tenantID id.TenantID, seq int64, mutate func(*audit.Event)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.chains[tenantID] {
		if s.chains[tenantID][i].Seq == seq {
			mutate(&s.chains[tenantID][i])
			return true
		}
	}
	return false
}

func clone(ev audit.Event) audit.Event {
	if ev.Payload != nil {
		p := make(map[string]string, len(ev.Payload))
		for k, v := range ev.Payload {
			p[k] = v
		}
		ev.Payload = p
	}
	return ev
}
