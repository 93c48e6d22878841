package handler

import (
	"strings"
	"time"

	"dataguard/internal/retention"
	"dataguard/internal/tenant/models"
	"dataguard/pkg/validation"
)

// RegisterRequest is the body of POST /v1/tenants.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=128"`
	PlanTier string `json:"plan_tier" validate:"required"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.PlanTier = strings.ToUpper(strings.TrimSpace(r.PlanTier))
}

func (r *RegisterRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	_, err := retention.ParseTier(r.PlanTier)
	return err
}

type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PlanTier  string    `json:"plan_tier"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ListResponse struct {
	Tenants []TenantResponse `json:"tenants"`
}

func toTenantResponse(t *models.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		PlanTier:  string(t.Tier),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
}
