package models

import (
	"strings"
	"time"

	"dataguard/internal/retention"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
)

// Status of a tenant. Suspended tenants keep their data but are skipped by
// scheduled purges.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

const maxNameLength = 128

// Tenant is one customer account of the platform.
type Tenant struct {
	ID        id.TenantID    `json:"id"`
	Name      string         `json:"name"`
	Tier      retention.Tier `json:"plan_tier"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Suspend moves an active tenant to suspended.
func (t *Tenant) Suspend() error {
	if !t.IsActive() {
		return dErrors.New(dErrors.CodeConflict, "tenant is already suspended")
	}
	t.Status = StatusSuspended
	return nil
}

// Reactivate moves a suspended tenant back to active.
func (t *Tenant) Reactivate() error {
	if t.IsActive() {
		return dErrors.New(dErrors.CodeConflict, "tenant is already active")
	}
	t.Status = StatusActive
	return nil
}

func NewTenant(tenantID id.TenantID, name string, tier retention.Tier, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name cannot be empty")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name must be 128 characters or less")
	}
	if _, err := retention.ParseTier(string(tier)); err != nil {
		return nil, err
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Tier:      tier,
		Status:    StatusActive,
		CreatedAt: now,
	}, nil
}
