package reporting

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dsrmodels "dataguard/internal/dsr/models"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/httputil"
	"dataguard/pkg/platform/middleware/request"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/validation"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 3650
	defaultAuditPage  = 100
)

// Reporter is the read surface the handler exposes.
type Reporter interface {
	Summary(ctx context.Context, tenantID id.TenantID, since time.Time) (*Summary, error)
	Overdue(ctx context.Context, tenantID id.TenantID) ([]*dsrmodels.Request, error)
	AuditEvents(ctx context.Context, tenantID id.TenantID, filter audit.Filter) ([]audit.Event, error)
	VerifyAudit(ctx context.Context, tenantID id.TenantID) (*audit.VerifyReport, error)
}

// Handler handles report and audit endpoints.
type Handler struct {
	reporter Reporter
	logger   *slog.Logger
}

func NewHandler(reporter Reporter, logger *slog.Logger) *Handler {
	return &Handler{
		reporter: reporter,
		logger:   logger,
	}
}

// Register registers report routes on a tenant-scoped router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/summary", h.HandleSummary)
	r.Get("/reports/overdue", h.HandleOverdue)
	r.Get("/audit", h.HandleAuditEvents)
	r.Get("/audit/verify", h.HandleVerifyAudit)
}

// HandleSummary reports over the last since_days days (default 30).
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	days, err := httputil.QueryInt(r, "since_days", defaultWindowDays, maxWindowDays)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	since := requesttime.Now(ctx).AddDate(0, 0, -days)
	summary, err := h.reporter.Summary(ctx, tenantID, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build summary",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

type overdueItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	AgeDays   int       `json:"age_days"`
}

func (h *Handler) HandleOverdue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.reporter.Overdue(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	now := requesttime.Now(ctx)
	items := make([]overdueItem, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, overdueItem{
			ID:        req.ID.String(),
			Kind:      string(req.Kind),
			Status:    string(req.Status),
			CreatedAt: req.CreatedAt,
			AgeDays:   int(now.Sub(req.CreatedAt).Hours() / 24),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": items})
}

// HandleAuditEvents lists events newest first. Filters: action, target_type,
// target_id, since and until (RFC 3339) and limit.
func (h *Handler) HandleAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := auditFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.reporter.AuditEvents(ctx, tenantID, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func auditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	limit, err := httputil.QueryInt(r, "limit", defaultAuditPage, validation.MaxPageSize)
	if err != nil {
		return audit.Filter{}, err
	}
	filter := audit.Filter{
		Action:     audit.Action(q.Get("action")),
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
		Limit:      limit,
	}
	for name, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, name+" must be an RFC 3339 timestamp")
		}
		*dst = t
	}
	return filter, nil
}

func (h *Handler) HandleVerifyAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.reporter.VerifyAudit(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !report.OK {
		h.logger.WarnContext(ctx, "audit chain verification failed",
			"tenant_id", tenantID.String(),
			"errors", len(report.Errors),
			"request_id", request.GetRequestID(ctx),
		)
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
