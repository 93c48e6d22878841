// Package reporting answers compliance questions per tenant: how requests
// are being handled, what the audit trail recorded and how purges are doing.
package reporting

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks RequestSource,AuditSource,RunSource

import (
	"context"
	"time"

	dsrmodels "dataguard/internal/dsr/models"
	"dataguard/internal/retention/runs"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/middleware/requesttime"
)

// RequestSource reads data-subject requests.
type RequestSource interface {
	List(ctx context.Context, tenantID id.TenantID, status dsrmodels.Status) ([]*dsrmodels.Request, error)
	Overdue(ctx context.Context, tenantID id.TenantID, now time.Time) ([]*dsrmodels.Request, error)
	ProcessingBudget() time.Duration
}

// AuditSource reads the audit trail.
type AuditSource interface {
	List(ctx context.Context, tenantID id.TenantID, filter audit.Filter) ([]audit.Event, error)
	CountByAction(ctx context.Context, tenantID id.TenantID, since time.Time) (map[audit.Action]int, error)
	Verify(ctx context.Context, tenantID id.TenantID) (*audit.VerifyReport, error)
}

// RunSource reads purge runs.
type RunSource interface {
	ListRuns(ctx context.Context, tenantID id.TenantID, limit int) ([]*runs.Run, error)
	Escalated(ctx context.Context, tenantID id.TenantID) ([]runs.Failure, error)
}

// Service builds tenant reports. It only reads.
type Service struct {
	requests RequestSource
	audit    AuditSource
	runs     RunSource
}

func NewService(requests RequestSource, auditSource AuditSource, runSource RunSource) *Service {
	return &Service{
		requests: requests,
		audit:    auditSource,
		runs:     runSource,
	}
}

// RequestStats describes requests created inside the report window.
// ClosedWithinBudgetRatio is omitted while nothing has closed.
type RequestStats struct {
	ByStatus                map[dsrmodels.Status]int `json:"by_status"`
	Open                    int                      `json:"open"`
	Closed                  int                      `json:"closed"`
	ClosedWithinBudget      int                      `json:"closed_within_budget"`
	ClosedWithinBudgetRatio *float64                 `json:"closed_within_budget_ratio,omitempty"`
	Overdue                 int                      `json:"overdue"`
}

// Summary is the tenant's compliance report.
type Summary struct {
	TenantID          id.TenantID          `json:"tenant_id"`
	Since             time.Time            `json:"since"`
	Requests          RequestStats         `json:"requests"`
	AuditActions      map[audit.Action]int `json:"audit_actions"`
	LastPurgeRun      *runs.Run            `json:"last_purge_run,omitempty"`
	EscalatedFailures []runs.Failure       `json:"escalated_purge_failures"`
	Timestamp         time.Time            `json:"timestamp"`
}

// Summary reports on the window starting at since. Overdue counts every open
// request regardless of the window.
func (s *Service) Summary(ctx context.Context, tenantID id.TenantID, since time.Time) (*Summary, error) {
	now := requesttime.Now(ctx)

	all, err := s.requests.List(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	overdue, err := s.requests.Overdue(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}
	stats := requestStats(all, since, s.requests.ProcessingBudget())
	stats.Overdue = len(overdue)

	actions, err := s.audit.CountByAction(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}

	latest, err := s.runs.ListRuns(ctx, tenantID, 1)
	if err != nil {
		return nil, err
	}
	escalated, err := s.runs.Escalated(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TenantID:          tenantID,
		Since:             since,
		Requests:          stats,
		AuditActions:      actions,
		EscalatedFailures: escalated,
		Timestamp:         now,
	}
	if len(latest) > 0 {
		summary.LastPurgeRun = latest[0]
	}
	return summary, nil
}

func requestStats(reqs []*dsrmodels.Request, since time.Time, budget time.Duration) RequestStats {
	stats := RequestStats{ByStatus: make(map[dsrmodels.Status]int)}
	for _, r := range reqs {
		if r.CreatedAt.Before(since) {
			continue
		}
		stats.ByStatus[r.Status]++
		if _, closed := r.ClosedAt(); !closed {
			if !r.Status.IsTerminal() {
				stats.Open++
			}
			continue
		}
		stats.Closed++
		if r.ClosedWithin(budget) {
			stats.ClosedWithinBudget++
		}
	}
	if stats.Closed > 0 {
		ratio := float64(stats.ClosedWithinBudget) / float64(stats.Closed)
		stats.ClosedWithinBudgetRatio = &ratio
	}
	return stats
}

// Overdue lists open requests that outlived the processing budget.
func (s *Service) Overdue(ctx context.Context, tenantID id.TenantID) ([]*dsrmodels.Request, error) {
	return s.requests.Overdue(ctx, tenantID, requesttime.Now(ctx))
}

func (s *Service) AuditEvents(ctx context.Context, tenantID id.TenantID, filter audit.Filter) ([]audit.Event, error) {
	return s.audit.List(ctx, tenantID, filter)
}

func (s *Service) VerifyAudit(ctx context.Context, tenantID id.TenantID) (*audit.VerifyReport, error) {
	return s.audit.Verify(ctx, tenantID)
}
