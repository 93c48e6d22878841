package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataguard/internal/dsr/models"
	"dataguard/internal/dsr/service"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/httputil"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/platform/middleware/request"
)

// Service defines the request lifecycle operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, tenantID id.TenantID, cmd service.SubmitCommand) (*models.Request, error)
	Get(ctx context.Context, tenantID id.TenantID, reqID id.DSRID) (*models.Request, error)
	List(ctx context.Context, tenantID id.TenantID, status models.Status) ([]*models.Request, error)
	Review(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, reviewer string) (*models.Request, error)
	Decide(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, approve bool, reviewer string) (*models.Request, error)
	Process(ctx context.Context, tenantID id.TenantID, reqID id.DSRID) (*models.Request, error)
	Abandon(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, reviewer string) (*models.Request, error)
}

// Handler handles data-subject request endpoints.
type Handler struct {
	logger *slog.Logger
	dsr    Service
}

func New(dsr Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		dsr:    dsr,
	}
}

// Register registers the request routes on a tenant-scoped router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/dsr", h.handleSubmit)
	r.Get("/dsr", h.handleList)
	r.Get("/dsr/{requestID}", h.handleGet)
	r.Post("/dsr/{requestID}/review", h.handleReview)
	r.Post("/dsr/{requestID}/decision", h.handleDecision)
	r.Post("/dsr/{requestID}/process", h.handleProcess)
	r.Post("/dsr/{requestID}/abandon", h.handleAbandon)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.dsr.Submit(ctx, tenantID, service.SubmitCommand{
		Kind:             models.Kind(req.Kind),
		RequesterContact: req.RequesterContact,
		SubjectID:        req.SubjectID,
		Reason:           req.Reason,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to submit request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var status models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err = models.ParseStatus(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	reqs, err := h.dsr.List(r.Context(), tenantID, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Requests: make([]RequestResponse, 0, len(reqs))}
	for _, req := range reqs {
		resp.Requests = append(resp.Requests, toRequestResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	req, err := h.dsr.Get(r.Context(), tenantID, reqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, reqID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[ReviewerRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, r, "review")(h.dsr.Review(ctx, tenantID, reqID, reviewerOrActor(ctx, body.Reviewer)))
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, reqID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, r, "decision")(h.dsr.Decide(ctx, tenantID, reqID, *body.Approve, reviewerOrActor(ctx, body.Reviewer)))
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "process")(h.dsr.Process(r.Context(), tenantID, reqID))
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, reqID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[ReviewerRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, r, "abandon")(h.dsr.Abandon(ctx, tenantID, reqID, reviewerOrActor(ctx, body.Reviewer)))
}

// respond writes the outcome of a lifecycle operation.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op string) func(*models.Request, error) {
	return func(req *models.Request, err error) {
		if err != nil {
			h.logger.WarnContext(r.Context(), "request transition failed",
				"request_id", request.GetRequestID(r.Context()),
				"operation", op,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func pathIDs(w http.ResponseWriter, r *http.Request) (id.TenantID, id.DSRID, bool) {
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return id.TenantID{}, id.DSRID{}, false
	}
	reqID, err := id.ParseDSRID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TenantID{}, id.DSRID{}, false
	}
	return tenantID, reqID, true
}

func reviewerOrActor(ctx context.Context, reviewer string) string {
	if reviewer != "" {
		return reviewer
	}
	return admin.Actor(ctx)
}
