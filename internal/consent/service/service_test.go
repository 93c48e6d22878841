package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dataguard/internal/consent/models"
	"dataguard/internal/consent/service/mocks"
	"dataguard/internal/consent/store"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	auditmocks "dataguard/pkg/platform/audit/mocks"
	auditmemory "dataguard/pkg/platform/audit/store/memory"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/privacy"
	"dataguard/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	store      *store.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	trail      *audit.Trail
	service    *Service
	tenant     id.TenantID
	now        time.Time
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.trail = audit.NewTrail(s.auditStore, privacy.NewMasker(privacy.DefaultMaskedFields, false))
	s.service = New(s.store, s.trail, tx.NewMemoryRunner(), discardLogger(), WithValidity(365*24*time.Hour))
	s.tenant = id.NewTenantID()
	s.now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s.ctx = requesttime.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *ServiceSuite) record(ctx context.Context, purpose models.Purpose, granted bool) *models.Record {
	rec, err := s.service.Record(ctx, s.tenant, RecordCommand{
		Subject: "a@b.com",
		Purpose: purpose,
		Granted: granted,
		Source:  models.SourceUI,
	})
	s.Require().NoError(err)
	return rec
}

// TestGrantThenRevokeIsReflectedImmediately checks that the latest decision
// wins for every purpose.
func (s *ServiceSuite) TestGrantThenRevokeIsReflectedImmediately() {
	for purpose := range models.ValidPurposes {
		s.Run(string(purpose), func() {
			s.record(s.ctx, purpose, true)
			st, err := s.service.CurrentStatus(s.ctx, s.tenant, "a@b.com", purpose)
			s.Require().NoError(err)
			s.True(st.Known)
			s.True(st.Granted)

			s.record(s.ctx, purpose, false)
			st, err = s.service.CurrentStatus(s.ctx, s.tenant, "a@b.com", purpose)
			s.Require().NoError(err)
			s.True(st.Known)
			s.False(st.Granted)
		})
	}
}

func (s *ServiceSuite) TestExpiredConsentIsUnknown() {
	past := requesttime.WithTime(context.Background(), s.now.Add(-365*24*time.Hour-24*time.Hour))
	s.record(past, models.PurposeMarketing, true)

	st, err := s.service.CurrentStatus(s.ctx, s.tenant, "a@b.com", models.PurposeMarketing)

	s.Require().NoError(err)
	s.False(st.Known)
	s.False(st.Granted)
}

func (s *ServiceSuite) TestUnrecordedSubjectIsUnknown() {
	st, err := s.service.CurrentStatus(s.ctx, s.tenant, "nobody", models.PurposeAnalytics)

	s.Require().NoError(err)
	s.False(st.Known)
}

func (s *ServiceSuite) TestRecordEmitsMaskedAuditEvent() {
	rec := s.record(s.ctx, models.PurposeMarketing, true)

	events, err := s.trail.List(s.ctx, s.tenant, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	ev := events[0]
	s.Equal(audit.ActionConsentRecorded, ev.Action)
	s.Equal(rec.ID.String(), ev.TargetID)
	s.Equal("MARKETING", ev.Payload["purpose"])
	for _, v := range ev.Payload {
		s.False(strings.Contains(v, "a@b.com"))
	}
}

func (s *ServiceSuite) TestValidationErrorsPersistNothing() {
	cases := map[string]RecordCommand{
		"unknown purpose": {Subject: "s-1", Purpose: "PROFILING", Source: models.SourceUI},
		"empty subject":   {Subject: "", Purpose: models.PurposeMarketing, Source: models.SourceUI},
		"unknown source":  {Subject: "s-1", Purpose: models.PurposeMarketing, Source: "carrier-pigeon"},
		"oversized subject": {
			Subject: strings.Repeat("x", 400), Purpose: models.PurposeMarketing, Source: models.SourceUI,
		},
	}
	for name, cmd := range cases {
		s.Run(name, func() {
			_, err := s.service.Record(s.ctx, s.tenant, cmd)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	counts, err := s.trail.CountByAction(s.ctx, s.tenant, time.Time{})
	s.Require().NoError(err)
	s.Empty(counts)
}

// TestAuditFailureRollsBackRecord verifies no consent change survives
// without its audit trace.
func (s *ServiceSuite) TestAuditFailureRollsBackRecord() {
	recorder := auditmocks.NewMockRecorder(s.ctrl)
	recorder.EXPECT().Append(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeAuditWrite, "failed to record audit event"))
	svc := New(s.store, recorder, tx.NewMemoryRunner(), discardLogger())

	_, err := svc.Record(s.ctx, s.tenant, RecordCommand{
		Subject: "s-1", Purpose: models.PurposeAnalytics, Granted: true, Source: models.SourceAPI,
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWrite))
	history, err := svc.History(s.ctx, s.tenant, "s-1")
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *ServiceSuite) TestStoreErrorPropagatesAsInternal() {
	mockStore := mocks.NewMockStore(s.ctrl)
	svc := New(mockStore, s.trail, tx.NewMemoryRunner(), discardLogger())

	s.Run("append failure", func() {
		mockStore.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errStore)
		_, err := svc.Record(s.ctx, s.tenant, RecordCommand{
			Subject: "s-1", Purpose: models.PurposeAnalytics, Granted: true, Source: models.SourceAPI,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("latest failure", func() {
		mockStore.EXPECT().Latest(gomock.Any(), s.tenant, "s-1", models.PurposeAnalytics).Return(nil, errStore)
		_, err := svc.CurrentStatus(s.ctx, s.tenant, "s-1", models.PurposeAnalytics)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestHistoryIsNewestFirst() {
	first := s.record(s.ctx, models.PurposeMarketing, true)
	later := requesttime.WithTime(context.Background(), s.now.Add(time.Hour))
	second := s.record(later, models.PurposeMarketing, false)

	history, err := s.service.History(s.ctx, s.tenant, "a@b.com")

	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(second.ID, history[0].ID)
	s.Equal(first.ID, history[1].ID)
}

var errStore = errors.New("connection reset")
