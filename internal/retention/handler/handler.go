package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataguard/internal/retention/runs"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/httputil"
	"dataguard/pkg/platform/middleware/request"
	"dataguard/pkg/validation"
)

const defaultRunPage = 20

// Service exposes manual purge runs, their history and the records that
// exhausted their purge attempts.
type Service interface {
	TriggerPurgeNow(ctx context.Context, tenantID id.TenantID) (*runs.Run, error)
	ListRuns(ctx context.Context, tenantID id.TenantID, limit int) ([]*runs.Run, error)
	Escalated(ctx context.Context, tenantID id.TenantID) ([]runs.Failure, error)
	ResetPurgeAttempts(ctx context.Context, tenantID id.TenantID, recordType, recordID string) error
}

// Handler handles purge run endpoints.
type Handler struct {
	logger    *slog.Logger
	scheduler Service
}

func New(scheduler Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		scheduler: scheduler,
	}
}

// Register registers the purge run routes on a tenant-scoped router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/purge-runs", h.handleTrigger)
	r.Get("/purge-runs", h.handleList)
	r.Get("/purge-failures", h.handleFailures)
	r.Post("/purge-failures/{recordType}/{recordID}/reset", h.handleReset)
}

// handleTrigger runs the tenant's purge synchronously and returns the run.
func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, err := h.scheduler.TriggerPurgeNow(ctx, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "manual purge run refused",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "manual purge run finished",
		"request_id", requestID,
		"tenant_id", tenantID.String(),
		"run_id", run.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toRunResponse(run))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultRunPage, validation.MaxPageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := h.scheduler.ListRuns(r.Context(), tenantID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Runs: make([]RunResponse, 0, len(list))}
	for _, run := range list {
		resp.Runs = append(resp.Runs, toRunResponse(run))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleFailures(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	failures, err := h.scheduler.Escalated(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := FailureListResponse{Failures: make([]FailureResponse, 0, len(failures))}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, toFailureResponse(f))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleReset lets the next run retry a record that reached the attempt bound.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recordType := chi.URLParam(r, "recordType")
	recordID := chi.URLParam(r, "recordID")
	if err := h.scheduler.ResetPurgeAttempts(ctx, tenantID, recordType, recordID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "purge attempts reset",
		"request_id", request.GetRequestID(ctx),
		"tenant_id", tenantID.String(),
		"record_type", recordType,
		"record_id", recordID,
	)
	httputil.WriteJSON(w, http.StatusOK, ResetResponse{RecordType: recordType, RecordID: recordID, Attempts: 0})
}
