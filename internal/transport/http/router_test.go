package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dataguard/internal/platform/health"
	"dataguard/internal/retention"
	tenanthandler "dataguard/internal/tenant/handler"
	"dataguard/internal/tenant/handler/mocks"
	"dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/testutil"
)

const token = "s3cret"

type pingRoutes struct {
	actors []string
}

func (p *pingRoutes) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		p.actors = append(p.actors, admin.Actor(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService, *pingRoutes) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ping := &pingRoutes{}

	router := NewRouter(Config{
		AdminToken: token,
		Health:     health.New("test"),
		Tenants:    tenanthandler.New(svc, logger),
		Scoped:     []Registrar{ping},
	}, logger)
	return router, svc, ping
}

func serve(router http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleTenant() *models.Tenant {
	return testutil.NewTenantBuilder().WithTier(retention.TierPro).Build()
}

func TestProbesNeedNoToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		w := serve(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestAdminAPIRequiresToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/v1/tenants", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestScopedRoutes(t *testing.T) {
	t.Run("known tenant reaches the scoped handler with the caller as actor", func(t *testing.T) {
		router, svc, ping := newTestRouter(t)
		tenant := sampleTenant()
		svc.EXPECT().Get(gomock.Any(), tenant.ID).Return(tenant, nil)

		w := serve(router, http.MethodGet, "/v1/tenants/"+tenant.ID.String()+"/ping", map[string]string{
			"X-Admin-Token":    token,
			"X-Admin-Actor-ID": "dpo@corp",
		})

		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"dpo@corp"}, ping.actors)
	})

	t.Run("unknown tenant is rejected before the scoped handler", func(t *testing.T) {
		router, svc, ping := newTestRouter(t)
		svc.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeNotFound, "tenant not found"))

		w := serve(router, http.MethodGet, "/v1/tenants/"+id.NewTenantID().String()+"/ping", map[string]string{
			"X-Admin-Token": token,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, ping.actors)
	})

	t.Run("directory routes stay reachable next to the scoped group", func(t *testing.T) {
		router, svc, _ := newTestRouter(t)
		tenant := sampleTenant()
		svc.EXPECT().Get(gomock.Any(), tenant.ID).Return(tenant, nil)

		w := serve(router, http.MethodGet, "/v1/tenants/"+tenant.ID.String(), map[string]string{
			"X-Admin-Token": token,
		})

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
