package audit_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	audit "dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/audit/store/memory"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/privacy"
)

type failingStore struct {
	*memory.InMemoryStore
	err error
}

func (s *failingStore) Append(_ context.Context, _ *audit.Event) error {
	return s.err
}

type TrailSuite struct {
	suite.Suite
	store  *memory.InMemoryStore
	trail  *audit.Trail
	tenant id.TenantID
	ctx    context.Context
}

func TestTrailSuite(t *testing.T) {
	suite.Run(t, new(TrailSuite))
}

func (s *TrailSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.trail = audit.NewTrail(s.store, privacy.NewMasker(privacy.DefaultMaskedFields, false))
	s.tenant = id.NewTenantID()
	s.ctx = context.Background()
}

func (s *TrailSuite) appendN(n int) []*audit.Event {
	out := make([]*audit.Event, 0, n)
	for i := 0; i < n; i++ {
		ev, err := s.trail.Append(s.ctx, audit.Event{
			TenantID:   s.tenant,
			Action:     audit.ActionConsentRecorded,
			TargetType: audit.TargetConsent,
			TargetID:   "c-" + string(rune('a'+i)),
			Payload:    map[string]string{"purpose": "marketing"},
		})
		s.Require().NoError(err)
		out = append(out, ev)
	}
	return out
}

func (s *TrailSuite) TestAppendBuildsDenseLinkedChain() {
	events := s.appendN(3)

	s.Equal(int64(1), events[0].Seq)
	s.Equal(audit.GenesisHash, events[0].PrevHash)
	for i := 1; i < len(events); i++ {
		s.Equal(int64(i+1), events[i].Seq)
		s.Equal(events[i-1].Hash, events[i].PrevHash)
	}
	s.NotEqual(events[1].Hash, events[2].Hash)
}

func (s *TrailSuite) TestAppendFillsDefaultsFromContext() {
	pinned := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	ctx := requesttime.WithTime(admin.WithActor(s.ctx, "dpo@corp"), pinned)

	ev, err := s.trail.Append(ctx, audit.Event{TenantID: s.tenant, Action: audit.ActionDSRApproved})

	s.Require().NoError(err)
	s.Equal("dpo@corp", ev.Actor)
	s.Equal(pinned.Truncate(time.Microsecond), ev.OccurredAt)
	s.False(ev.ID == id.AuditEventID{})
}

func (s *TrailSuite) TestActorEmailIsMasked() {
	ctx := admin.WithActor(s.ctx, "dpo@corp.com")

	fromCtx, err := s.trail.Append(ctx, audit.Event{TenantID: s.tenant, Action: audit.ActionDSRApproved})
	s.Require().NoError(err)
	explicit, err := s.trail.Append(s.ctx, audit.Event{TenantID: s.tenant, Action: audit.ActionDSRRejected, Actor: "ops (jane@corp.com)"})
	s.Require().NoError(err)

	s.Equal(privacy.MaskToken, fromCtx.Actor)
	s.Equal("ops ("+privacy.MaskToken+")", explicit.Actor)
	events, err := s.trail.List(s.ctx, s.tenant, audit.Filter{})
	s.Require().NoError(err)
	for _, ev := range events {
		s.NotContains(ev.Actor, "@corp.com")
	}
	report, err := s.trail.Verify(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.True(report.OK)
}

func (s *TrailSuite) TestAppendRejectsIncompleteEvents() {
	_, err := s.trail.Append(s.ctx, audit.Event{Action: audit.ActionDSRApproved})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.trail.Append(s.ctx, audit.Event{TenantID: s.tenant})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *TrailSuite) TestCapturePIIDisabledKeepsEmailOutOfPayload() {
	_, err := s.trail.Append(s.ctx, audit.Event{
		TenantID: s.tenant,
		Action:   audit.ActionConsentRecorded,
		Payload: map[string]string{
			"subject": "a@b.com",
			"reason":  "requested by a@b.com",
		},
	})
	s.Require().NoError(err)

	events, err := s.trail.List(s.ctx, s.tenant, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	for k, v := range events[0].Payload {
		s.NotContains(v, "a@b.com", "payload key %s leaked PII", k)
	}
	s.NotContains(events[0].Payload, "subject")
}

func (s *TrailSuite) TestCapturePIIEnabledMasksValues() {
	trail := audit.NewTrail(s.store, privacy.NewMasker(privacy.DefaultMaskedFields, true))

	ev, err := trail.Append(s.ctx, audit.Event{
		TenantID: s.tenant,
		Action:   audit.ActionConsentRecorded,
		Payload:  map[string]string{"subject": "a@b.com"},
	})

	s.Require().NoError(err)
	s.Equal(privacy.MaskToken, ev.Payload["subject"])
}

func (s *TrailSuite) TestVerifyAcceptsIntactChain() {
	events := s.appendN(5)

	report, err := s.trail.Verify(s.ctx, s.tenant)

	s.Require().NoError(err)
	s.True(report.OK)
	s.Equal(5, report.Total)
	s.Equal(int64(5), report.LastSeq)
	s.Equal(events[4].Hash, report.LastHash)
}

func (s *TrailSuite) TestVerifyDetectsTampering() {
	s.appendN(4)

	s.Run("payload rewrite", func() {
		s.Require().True(s.store.Tamper(s.tenant, 2, func(ev *audit.Event) {
			ev.Payload["purpose"] = "analytics"
		}))

		report, err := s.trail.Verify(s.ctx, s.tenant)

		s.Require().NoError(err)
		s.False(report.OK)
		s.Require().NotEmpty(report.Errors)
		s.Equal(int64(2), report.Errors[0].Seq)
		s.Contains(report.Errors[0].Reason, "hash mismatch")
	})

	s.Run("sequence gap", func() {
		s.Require().True(s.store.Tamper(s.tenant, 4, func(ev *audit.Event) {
			ev.Seq = 9
		}))

		report, err := s.trail.Verify(s.ctx, s.tenant)

		s.Require().NoError(err)
		s.False(report.OK)
		found := false
		for _, e := range report.Errors {
			if e.Seq == 9 && strings.Contains(e.Reason, "sequence gap") {
				found = true
			}
		}
		s.True(found, "expected a sequence gap error, got %+v", report.Errors)
	})
}

func (s *TrailSuite) TestChainsAreIsolatedPerTenant() {
	s.appendN(2)
	other := id.NewTenantID()

	ev, err := s.trail.Append(s.ctx, audit.Event{TenantID: other, Action: audit.ActionTenantRegistered})

	s.Require().NoError(err)
	s.Equal(int64(1), ev.Seq)
	s.Equal(audit.GenesisHash, ev.PrevHash)
}

func (s *TrailSuite) TestConcurrentAppendsKeepSequenceDense() {
	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.trail.Append(s.ctx, audit.Event{TenantID: s.tenant, Action: audit.ActionRecordPurged})
			s.NoError(err)
		}()
	}
	wg.Wait()

	report, err := s.trail.Verify(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.True(report.OK, "errors: %+v", report.Errors)
	s.Equal(writers, report.Total)
	s.Equal(int64(writers), report.LastSeq)
}

func (s *TrailSuite) TestStoreFailureSurfacesAsAuditWriteError() {
	trail := audit.NewTrail(&failingStore{InMemoryStore: s.store, err: errors.New("disk full")}, nil)

	_, err := trail.Append(s.ctx, audit.Event{TenantID: s.tenant, Action: audit.ActionDSRFailed})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWrite))
}

func (s *TrailSuite) TestListAndCountByAction() {
	s.appendN(2)
	_, err := s.trail.Append(s.ctx, audit.Event{TenantID: s.tenant, Action: audit.ActionDSRRequested, TargetID: "r-1"})
	s.Require().NoError(err)

	latest, err := s.trail.List(s.ctx, s.tenant, audit.Filter{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(latest, 1)
	s.Equal(audit.ActionDSRRequested, latest[0].Action)

	byTarget, err := s.trail.List(s.ctx, s.tenant, audit.Filter{TargetID: "r-1"})
	s.Require().NoError(err)
	s.Len(byTarget, 1)

	counts, err := s.trail.CountByAction(s.ctx, s.tenant, time.Time{})
	s.Require().NoError(err)
	s.Equal(2, counts[audit.ActionConsentRecorded])
	s.Equal(1, counts[audit.ActionDSRRequested])
}
