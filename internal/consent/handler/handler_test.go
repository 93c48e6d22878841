package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dataguard/internal/consent/handler/mocks"
	"dataguard/internal/consent/models"
	"dataguard/internal/consent/service"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service
type ConsentHandlerSuite struct {
	suite.Suite
	tenant id.TenantID
}

func TestConsentHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerSuite))
}

func (s *ConsentHandlerSuite) SetupTest() {
	s.tenant = id.NewTenantID()
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Route("/v1/tenants/{tenantID}", New(mockService, logger).Register)
	return r, mockService
}

func (s *ConsentHandlerSuite) url(path string) string {
	return "/v1/tenants/" + s.tenant.String() + path
}

func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, expectedCode, resp["error"])
}

func (s *ConsentHandlerSuite) TestRecord() {
	s.T().Run("201 - records a grant", func(t *testing.T) {
		router, svc := newTestRouter(t)
		now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
		svc.EXPECT().
			Record(gomock.Any(), s.tenant, service.RecordCommand{
				Subject: "sub-1", Purpose: models.PurposeMarketing, Granted: true, Source: models.SourceWebhook,
			}).
			Return(&models.Record{
				ID: id.NewConsentID(), TenantID: s.tenant, Subject: "sub-1", Purpose: models.PurposeMarketing,
				Granted: true, Source: models.SourceWebhook, RecordedAt: now, ExpiresAt: now.AddDate(1, 0, 0),
			}, nil)

		body := `{"subject":" sub-1 ","purpose":"marketing","granted":true,"source":"WEBHOOK"}`
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, s.url("/consents"), bytes.NewBufferString(body)))

		require.Equal(t, http.StatusCreated, w.Code)
		var resp RecordResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "MARKETING", resp.Purpose)
		assert.True(t, resp.Granted)
	})

	s.T().Run("400 - unknown purpose never reaches the service", func(t *testing.T) {
		router, _ := newTestRouter(t)

		body := `{"subject":"sub-1","purpose":"profiling","granted":true,"source":"ui"}`
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, s.url("/consents"), bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, string(dErrors.CodeValidation))
	})

	s.T().Run("400 - missing granted flag", func(t *testing.T) {
		router, _ := newTestRouter(t)

		body := `{"subject":"sub-1","purpose":"ANALYTICS","source":"ui"}`
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, s.url("/consents"), bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("400 - malformed tenant id", func(t *testing.T) {
		router, _ := newTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/tenants/not-a-uuid/consents", bytes.NewBufferString(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("500 - audit failure is not described to the caller", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().Record(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeAuditWrite, "failed to record audit event"))

		body := `{"subject":"sub-1","purpose":"ANALYTICS","granted":false,"source":"api"}`
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, s.url("/consents"), bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "error_description")
	})
}

func (s *ConsentHandlerSuite) TestStatus() {
	s.T().Run("200 - unknown status", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().CurrentStatus(gomock.Any(), s.tenant, "sub-1", models.PurposeAnalytics).Return(models.Status{}, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, s.url("/consents/status?subject=sub-1&purpose=analytics"), nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp StatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "unknown", resp.Status)
		assert.False(t, resp.Granted)
		assert.Nil(t, resp.ExpiresAt)
	})

	s.T().Run("200 - granted status", func(t *testing.T) {
		router, svc := newTestRouter(t)
		now := time.Now().UTC()
		svc.EXPECT().CurrentStatus(gomock.Any(), s.tenant, "sub-1", models.PurposeMarketing).
			Return(models.Status{Known: true, Granted: true, RecordedAt: now, ExpiresAt: now.Add(time.Hour)}, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, s.url("/consents/status?subject=sub-1&purpose=MARKETING"), nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp StatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "granted", resp.Status)
		assert.NotNil(t, resp.ExpiresAt)
	})

	s.T().Run("400 - missing subject", func(t *testing.T) {
		router, _ := newTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, s.url("/consents/status?purpose=MARKETING"), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func (s *ConsentHandlerSuite) TestHistory() {
	router, svc := newTestRouter(s.T())
	now := time.Now().UTC()
	svc.EXPECT().History(gomock.Any(), s.tenant, "sub-1").Return([]*models.Record{
		{ID: id.NewConsentID(), Subject: "sub-1", Purpose: models.PurposeMarketing, Granted: false, RecordedAt: now},
		{ID: id.NewConsentID(), Subject: "sub-1", Purpose: models.PurposeMarketing, Granted: true, RecordedAt: now.Add(-time.Hour)},
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, s.url("/consents?subject=sub-1"), nil))

	s.Require().Equal(http.StatusOK, w.Code)
	var resp HistoryResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Records, 2)
	s.False(resp.Records[0].Granted)
}
