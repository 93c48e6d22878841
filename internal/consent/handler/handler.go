package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataguard/internal/consent/models"
	"dataguard/internal/consent/service"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/httputil"
	"dataguard/pkg/platform/middleware/request"
)

// Service defines the interface for consent operations.
type Service interface {
	Record(ctx context.Context, tenantID id.TenantID, cmd service.RecordCommand) (*models.Record, error)
	CurrentStatus(ctx context.Context, tenantID id.TenantID, subject string, purpose models.Purpose) (models.Status, error)
	History(ctx context.Context, tenantID id.TenantID, subject string) ([]*models.Record, error)
}

// Handler handles consent ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

// New creates a new consent Handler.
func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
	}
}

// Register registers the consent routes on a tenant-scoped router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consents", h.handleRecord)
	r.Get("/consents/status", h.handleStatus)
	r.Get("/consents", h.handleHistory)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.consent.Record(ctx, tenantID, service.RecordCommand{
		Subject: req.Subject,
		Purpose: models.Purpose(req.Purpose),
		Granted: *req.Granted,
		Source:  models.Source(req.Source),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record consent",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject query parameter is required"))
		return
	}
	purpose, err := models.ParsePurpose(r.URL.Query().Get("purpose"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	st, err := h.consent.CurrentStatus(ctx, tenantID, subject, purpose)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read consent status",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(subject, purpose, st))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject query parameter is required"))
		return
	}

	records, err := h.consent.History(ctx, tenantID, subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := HistoryResponse{Subject: subject, Records: make([]RecordResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, toRecordResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
