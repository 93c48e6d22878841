package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	consentmodels "dataguard/internal/consent/models"
	consentservice "dataguard/internal/consent/service"
	consentstore "dataguard/internal/consent/store"
	purgememory "dataguard/internal/purge/providers/memory"
	"dataguard/internal/retention"
	tenantservice "dataguard/internal/tenant/service"
	tenantstore "dataguard/internal/tenant/store"
	"dataguard/pkg/platform/audit"
	auditmemory "dataguard/pkg/platform/audit/store/memory"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/privacy"
	"dataguard/pkg/platform/tx"
)

type SeederSuite struct {
	suite.Suite
	trail    *audit.Trail
	tenants  *tenantservice.Service
	consents *consentservice.Service
	contacts *purgememory.Provider
	tickets  *purgememory.Provider
	seeder   *Seeder
	now      time.Time
	ctx      context.Context
}

func TestSeederSuite(t *testing.T) {
	suite.Run(t, new(SeederSuite))
}

func (s *SeederSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := tx.NewMemoryRunner()
	s.trail = audit.NewTrail(auditmemory.NewInMemoryStore(), privacy.NewMasker(privacy.DefaultMaskedFields, false))
	s.tenants = tenantservice.New(tenantstore.NewInMemory(), s.trail, runner, logger)
	s.consents = consentservice.New(consentstore.NewInMemoryStore(), s.trail, runner, logger)
	s.contacts = purgememory.New("contact")
	s.tickets = purgememory.New("ticket")
	s.seeder = New(s.tenants, s.consents, []RecordSink{s.contacts, s.tickets}, logger)
	s.now = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	s.ctx = requesttime.WithTime(context.Background(), s.now)
}

func (s *SeederSuite) TestSeedAll() {
	tenants, err := s.seeder.SeedAll(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(tenants, len(demoTenants))

	active, err := s.tenants.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Len(active, len(demoTenants))

	for _, t := range tenants {
		s.Equal(len(demoSubjects), s.contacts.Len(t.ID))
		s.Equal(len(demoSubjects), s.tickets.Len(t.ID))

		st, err := s.consents.CurrentStatus(s.ctx, t.ID, demoSubjects[1], consentmodels.PurposeMarketing)
		s.Require().NoError(err)
		s.True(st.Known)
		s.False(st.Granted)

		events, err := s.trail.List(s.ctx, t.ID, audit.Filter{Action: audit.ActionTenantRegistered})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(Actor, events[0].Actor)
	}
}

// TestRecordsStraddleEveryRetentionWindow makes sure each tier has records on
// both sides of its cutoff.
func (s *SeederSuite) TestRecordsStraddleEveryRetentionWindow() {
	tenants, err := s.seeder.SeedAll(s.ctx)
	s.Require().NoError(err)

	resolver, err := retention.NewResolver(nil)
	s.Require().NoError(err)
	for _, t := range tenants {
		cutoff, err := resolver.Cutoff(t.Tier, s.now)
		s.Require().NoError(err)

		stale, err := s.contacts.ListStale(s.ctx, t.ID, cutoff)
		s.Require().NoError(err)
		s.NotEmpty(stale, "tier %s", t.Tier)
		s.Less(len(stale), len(demoSubjects), "tier %s", t.Tier)
	}
}

func (s *SeederSuite) TestDuplicateSeedFails() {
	_, err := s.seeder.SeedAll(s.ctx)
	s.Require().NoError(err)

	_, err = s.seeder.SeedAll(s.ctx)
	s.Error(err)
}
