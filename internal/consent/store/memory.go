package store

import (
	"context"
	"sort"
	"sync"

	"dataguard/internal/consent/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

type ledgerKey struct {
	tenant  id.TenantID
	subject string
}

// InMemoryStore is an append-only ledger keyed by tenant and subject.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[ledgerKey][]models.Record
}

// NewInMemoryStore creates an empty ledger.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[ledgerKey][]models.Record)}
}

// Append stores a copy of rec.
func (s *InMemoryStore) Append(ctx context.Context, rec *models.Record) error {
	key := ledgerKey{tenant: rec.TenantID, subject: rec.Subject}

	s.mu.Lock()
	s.records[key] = append(s.records[key], *rec)
	n := len(s.records[key])
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.records[key]) == n {
			s.records[key] = s.records[key][:n-1]
		}
	})
	return nil
}

// Latest returns the most recently recorded entry for (subject, purpose).
func (s *InMemoryStore) Latest(_ context.Context, tenantID id.TenantID, subject string, purpose models.Purpose) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Record
	recs := s.records[ledgerKey{tenant: tenantID, subject: subject}]
	for i := range recs {
		if recs[i].Purpose != purpose {
			continue
		}
		// Later appends win ties on RecordedAt.
		if latest == nil || !recs[i].RecordedAt.Before(latest.RecordedAt) {
			latest = &recs[i]
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *latest
	return &out, nil
}

// ListBySubject returns every record for subject, newest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, tenantID id.TenantID, subject string) ([]*models.Record, error) {
	s.mu.RLock()
	recs := s.records[ledgerKey{tenant: tenantID, subject: subject}]
	out := make([]*models.Record, 0, len(recs))
	for i := range recs {
		r := recs[i]
		out = append(out, &r)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}
