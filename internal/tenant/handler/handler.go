package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataguard/internal/retention"
	"dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/httputil"
	"dataguard/pkg/platform/middleware/request"
)

// Service defines the tenant directory operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, name string, tier retention.Tier) (*models.Tenant, error)
	Get(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
	Suspend(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	Reactivate(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
}

type Handler struct {
	logger  *slog.Logger
	tenants Service
}

func New(tenants Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		tenants: tenants,
	}
}

// Register mounts the directory routes on a router rooted at /v1/tenants.
func (h *Handler) Register(r chi.Router) {
	h.Mount(r)
}

// Mount registers the directory routes plus the given tenant-scoped route
// groups under /{tenantID}. Scoped routes only run for known tenants.
func (h *Handler) Mount(r chi.Router, scoped ...func(chi.Router)) {
	r.Post("/", h.handleRegister)
	r.Get("/", h.handleList)
	r.Route("/{tenantID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/suspend", h.handleSuspend)
		r.Post("/reactivate", h.handleReactivate)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireTenant)
			for _, register := range scoped {
				register(r)
			}
		})
	})
}

// RequireTenant rejects requests whose route tenant is malformed or unknown
// before they reach tenant-scoped handlers.
func (h *Handler) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := httputil.TenantID(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if _, err := h.tenants.Get(r.Context(), tenantID); err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.tenants.Register(ctx, req.Name, retention.Tier(req.PlanTier))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to register tenant",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTenantResponse(t))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Tenants: make([]TenantResponse, 0, len(tenants))}
	for _, t := range tenants {
		resp.Tenants = append(resp.Tenants, toTenantResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTenantResponse(t))
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tenants.Suspend)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tenants.Reactivate)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, id.TenantID) (*models.Tenant, error)) {
	ctx := r.Context()
	tenantID, err := httputil.TenantID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := op(ctx, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "tenant status change rejected",
			"request_id", request.GetRequestID(ctx),
			"tenant_id", tenantID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTenantResponse(t))
}
