package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

// InMemory stores tenants in memory for local runs and tests.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]models.Tenant
	nameIdx map[string]id.TenantID
}

func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[id.TenantID]models.Tenant),
		nameIdx: make(map[string]id.TenantID),
	}
}

// CreateIfNameAvailable atomically creates the tenant if the name is not
// already taken (case-insensitive).
func (s *InMemory) CreateIfNameAvailable(ctx context.Context, t *models.Tenant) error {
	lower := strings.ToLower(t.Name)

	s.mu.Lock()
	if _, exists := s.nameIdx[lower]; exists {
		s.mu.Unlock()
		return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrConflict)
	}
	s.tenants[t.ID] = *t
	s.nameIdx[lower] = t.ID
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tenants, t.ID)
		delete(s.nameIdx, lower)
	})
	return nil
}

func (s *InMemory) Update(ctx context.Context, t *models.Tenant) error {
	s.mu.Lock()
	prev, ok := s.tenants[t.ID]
	if !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	s.tenants[t.ID] = *t
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tenants[t.ID] = prev
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

// List returns every tenant, oldest first.
func (s *InMemory) List(_ context.Context) ([]*models.Tenant, error) {
	return s.list(func(*models.Tenant) bool { return true }), nil
}

// ListActive returns active tenants, oldest first.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Tenant, error) {
	return s.list((*models.Tenant).IsActive), nil
}

func (s *InMemory) list(keep func(*models.Tenant) bool) []*models.Tenant {
	s.mu.RLock()
	out := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		t := t
		if keep(&t) {
			out = append(out, &t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
