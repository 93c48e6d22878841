package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"dataguard/internal/dsr/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

// InMemoryStore keeps requests in memory for local runs and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.DSRID]*models.Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.DSRID]*models.Request)}
}

// CreateWithinLimit inserts req unless the tenant already has maxPending
// open requests. The count and the insert happen under one lock.
func (s *InMemoryStore) CreateWithinLimit(ctx context.Context, req *models.Request, maxPending int) error {
	s.mu.Lock()
	open := 0
	for _, r := range s.requests {
		if r.TenantID == req.TenantID && !r.Status.IsTerminal() {
			open++
		}
	}
	if open >= maxPending {
		s.mu.Unlock()
		return sentinel.ErrLimitExceeded
	}
	s.requests[req.ID] = req.Clone()
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.requests, req.ID)
	})
	return nil
}

// Update replaces the stored request when its version still matches and bumps
// req.Version.
func (s *InMemoryStore) Update(ctx context.Context, req *models.Request) error {
	s.mu.Lock()
	prev, ok := s.requests[req.ID]
	if !ok || prev.TenantID != req.TenantID {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	if prev.Version != req.Version {
		s.mu.Unlock()
		return sentinel.ErrConflict
	}
	req.Version++
	s.requests[req.ID] = req.Clone()
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests[req.ID] = prev
		req.Version--
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tenantID id.TenantID, reqID id.DSRID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[reqID]
	if !ok || r.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// List returns the tenant's requests newest first, optionally narrowed to one
// status.
func (s *InMemoryStore) List(_ context.Context, tenantID id.TenantID, status models.Status) ([]*models.Request, error) {
	return s.collect(func(r *models.Request) bool {
		return r.TenantID == tenantID && (status == "" || r.Status == status)
	}), nil
}

// ListProcessingBefore returns PROCESSING requests of any tenant whose
// processing started before cutoff.
func (s *InMemoryStore) ListProcessingBefore(_ context.Context, cutoff time.Time) ([]*models.Request, error) {
	return s.collect(func(r *models.Request) bool {
		return r.Status == models.StatusProcessing &&
			r.ProcessingStartedAt != nil && r.ProcessingStartedAt.Before(cutoff)
	}), nil
}

func (s *InMemoryStore) collect(keep func(*models.Request) bool) []*models.Request {
	s.mu.RLock()
	out := make([]*models.Request, 0)
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
