// Package seeder fills in-memory stores with demo tenants, consents and
// customer records so a fresh process has something to purge and report on.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	consentmodels "dataguard/internal/consent/models"
	consentservice "dataguard/internal/consent/service"
	purgememory "dataguard/internal/purge/providers/memory"
	"dataguard/internal/retention"
	tenantmodels "dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/platform/middleware/requesttime"
)

// Actor attributes seeded changes in the audit trail.
const Actor = "seeder"

// TenantRegistrar creates tenants.
type TenantRegistrar interface {
	Register(ctx context.Context, name string, tier retention.Tier) (*tenantmodels.Tenant, error)
}

// ConsentRecorder records consent decisions.
type ConsentRecorder interface {
	Record(ctx context.Context, tenantID id.TenantID, cmd consentservice.RecordCommand) (*consentmodels.Record, error)
}

// RecordSink holds customer records of one type.
type RecordSink interface {
	RecordType() string
	Put(rec purgememory.Record)
}

// Seeder populates in-memory stores with demo data
type Seeder struct {
	tenants  TenantRegistrar
	consents ConsentRecorder
	records  []RecordSink
	logger   *slog.Logger
}

// New creates a new seeder
func New(tenants TenantRegistrar, consents ConsentRecorder, records []RecordSink, logger *slog.Logger) *Seeder {
	return &Seeder{
		tenants:  tenants,
		consents: consents,
		records:  records,
		logger:   logger,
	}
}

var demoTenants = []struct {
	name string
	tier retention.Tier
}{
	{"Acme Support", retention.TierFree},
	{"Globex Helpdesk", retention.TierPro},
	{"Initech Care", retention.TierBusiness},
}

var demoSubjects = []string{
	"alice@example.com",
	"bob@example.com",
	"charlie@example.com",
	"diana@example.com",
}

// recordAges spreads last activity across every tier's window.
var recordAges = []int{3, 45, 120, 400}

// SeedAll populates all stores with demo data and returns the new tenants.
func (s *Seeder) SeedAll(ctx context.Context) ([]*tenantmodels.Tenant, error) {
	s.logger.InfoContext(ctx, "seeding demo data...")
	ctx = admin.WithActor(ctx, Actor)

	var tenants []*tenantmodels.Tenant
	for _, dt := range demoTenants {
		t, err := s.tenants.Register(ctx, dt.name, dt.tier)
		if err != nil {
			return nil, fmt.Errorf("failed to seed tenant %s: %w", dt.name, err)
		}
		tenants = append(tenants, t)
	}

	records := 0
	for _, t := range tenants {
		if err := s.seedConsents(ctx, t.ID); err != nil {
			return nil, fmt.Errorf("failed to seed consents: %w", err)
		}
		records += s.seedRecords(ctx, t.ID)
	}

	s.logger.InfoContext(ctx, "demo data seeded successfully",
		"tenants", len(tenants),
		"records", records,
	)
	return tenants, nil
}

func (s *Seeder) seedConsents(ctx context.Context, tenantID id.TenantID) error {
	decisions := []struct {
		subjectIdx int
		purpose    consentmodels.Purpose
		granted    bool
	}{
		{0, consentmodels.PurposeMarketing, true},
		{0, consentmodels.PurposeAnalytics, true},
		{1, consentmodels.PurposeMarketing, false},
		{2, consentmodels.PurposeAnalytics, true},
	}
	for _, d := range decisions {
		_, err := s.consents.Record(ctx, tenantID, consentservice.RecordCommand{
			Subject: demoSubjects[d.subjectIdx],
			Purpose: d.purpose,
			Granted: d.granted,
			Source:  consentmodels.SourceImport,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedRecords(ctx context.Context, tenantID id.TenantID) int {
	now := requesttime.Now(ctx)
	n := 0
	for _, sink := range s.records {
		for i, subject := range demoSubjects {
			age := recordAges[i%len(recordAges)]
			sink.Put(purgememory.Record{
				TenantID:     tenantID,
				ID:           fmt.Sprintf("%s-%d", sink.RecordType(), i+1),
				Subject:      subject,
				LastActivity: now.Add(-time.Duration(age) * 24 * time.Hour),
				Fields:       map[string]string{"email": subject},
			})
			n++
		}
	}
	return n
}
