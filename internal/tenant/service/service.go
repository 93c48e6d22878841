package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"log/slog"

	"dataguard/internal/retention"
	tenantmetrics "dataguard/internal/tenant/metrics"
	"dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

// Store persists tenants.
// Error Contract:
// - CreateIfNameAvailable returns sentinel.ErrConflict when the name is taken
// - FindByID and Update return sentinel.ErrNotFound for unknown tenants
type Store interface {
	CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error
	Update(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
	ListActive(ctx context.Context) ([]*models.Tenant, error)
}

type Option func(*Service)

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service is the tenant directory: registration, plan lookup and the
// active/suspended switch the purge scheduler honours.
type Service struct {
	tenants Store
	auditor audit.Recorder
	tx      tx.Runner
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
}

func New(tenants Store, auditor audit.Recorder, runner tx.Runner, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		tenants: tenants,
		auditor: auditor,
		tx:      runner,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, name string, tier retention.Tier) (*models.Tenant, error) {
	t, err := models.NewTenant(id.NewTenantID(), name, tier, requesttime.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tenants.CreateIfNameAvailable(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
		}
		_, err := s.auditor.Append(ctx, audit.Event{
			TenantID:   t.ID,
			Action:     audit.ActionTenantRegistered,
			TargetType: audit.TargetTenant,
			TargetID:   t.ID.String(),
			OccurredAt: t.CreatedAt,
			Payload:    map[string]string{"plan_tier": string(t.Tier)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	s.logger.InfoContext(ctx, "tenant registered",
		"tenant_id", t.ID.String(),
		"plan_tier", string(t.Tier),
	)
	return t, nil
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Tenant, error) {
	out, err := s.tenants.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return out, nil
}

// ListActive returns the tenants scheduled purges run for.
func (s *Service) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	out, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active tenants")
	}
	return out, nil
}

func (s *Service) Suspend(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.changeStatus(ctx, tenantID, (*models.Tenant).Suspend, audit.ActionTenantSuspended)
}

func (s *Service) Reactivate(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.changeStatus(ctx, tenantID, (*models.Tenant).Reactivate, audit.ActionTenantReactivated)
}

func (s *Service) changeStatus(ctx context.Context, tenantID id.TenantID, transition func(*models.Tenant) error, action audit.Action) (*models.Tenant, error) {
	var tenant *models.Tenant
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.tenants.FindByID(ctx, tenantID)
		if err != nil {
			return wrapTenantErr(err)
		}
		if err := transition(t); err != nil {
			return err
		}
		if err := s.tenants.Update(ctx, t); err != nil {
			return wrapTenantErr(err)
		}
		if _, err := s.auditor.Append(ctx, audit.Event{
			TenantID:   t.ID,
			Action:     action,
			TargetType: audit.TargetTenant,
			TargetID:   t.ID.String(),
			Payload:    map[string]string{"status": string(t.Status)},
		}); err != nil {
			return err
		}
		tenant = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementStatusChange(string(tenant.Status))
	}
	s.logger.InfoContext(ctx, "tenant status changed",
		"tenant_id", tenantID.String(),
		"status", string(tenant.Status),
	)
	return tenant, nil
}

func wrapTenantErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "tenant store failure")
}
