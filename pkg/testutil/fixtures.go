package testutil

import (
	"time"

	"github.com/google/uuid"

	dsrmodels "dataguard/internal/dsr/models"
	"dataguard/internal/retention"
	tenantmodels "dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	TenantID1  id.TenantID
	TenantID2  id.TenantID
	RequestID1 id.DSRID
	RequestID2 id.DSRID
}{
	TenantID1:  id.TenantID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000001")),
	TenantID2:  id.TenantID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000002")),
	RequestID1: id.DSRID(uuid.MustParse("dddd0000-0000-0000-0000-000000000001")),
	RequestID2: id.DSRID(uuid.MustParse("dddd0000-0000-0000-0000-000000000002")),
}

// TenantBuilder provides a fluent interface for building test tenants.
type TenantBuilder struct {
	tenant *tenantmodels.Tenant
}

// NewTenantBuilder creates a new TenantBuilder with sensible defaults.
func NewTenantBuilder() *TenantBuilder {
	return &TenantBuilder{
		tenant: &tenantmodels.Tenant{
			ID:        id.NewTenantID(),
			Name:      "Test Tenant",
			Tier:      retention.TierFree,
			Status:    tenantmodels.StatusActive,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func (b *TenantBuilder) WithID(tenantID id.TenantID) *TenantBuilder {
	b.tenant.ID = tenantID
	return b
}

func (b *TenantBuilder) WithName(name string) *TenantBuilder {
	b.tenant.Name = name
	return b
}

func (b *TenantBuilder) WithTier(tier retention.Tier) *TenantBuilder {
	b.tenant.Tier = tier
	return b
}

func (b *TenantBuilder) Suspended() *TenantBuilder {
	b.tenant.Status = tenantmodels.StatusSuspended
	return b
}

func (b *TenantBuilder) Build() *tenantmodels.Tenant {
	return b.tenant
}

// RequestBuilder builds data-subject requests in any state without walking
// the lifecycle. Closing timestamps follow the status.
type RequestBuilder struct {
	req *dsrmodels.Request
}

// NewRequestBuilder creates a REQUESTED access request for TestIDs.TenantID1.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		req: &dsrmodels.Request{
			ID:               id.NewDSRID(),
			TenantID:         TestIDs.TenantID1,
			RequesterContact: "subject@example.com",
			SubjectID:        "subject@example.com",
			Kind:             dsrmodels.KindAccess,
			Status:           dsrmodels.StatusRequested,
			CreatedAt:        time.Now().UTC(),
			Version:          1,
		},
	}
}

func (b *RequestBuilder) WithID(reqID id.DSRID) *RequestBuilder {
	b.req.ID = reqID
	return b
}

func (b *RequestBuilder) WithTenantID(tenantID id.TenantID) *RequestBuilder {
	b.req.TenantID = tenantID
	return b
}

func (b *RequestBuilder) WithSubject(subject string) *RequestBuilder {
	b.req.SubjectID = subject
	return b
}

func (b *RequestBuilder) WithKind(kind dsrmodels.Kind) *RequestBuilder {
	b.req.Kind = kind
	return b
}

func (b *RequestBuilder) CreatedAt(t time.Time) *RequestBuilder {
	b.req.CreatedAt = t
	return b
}

// InStatus sets the status. Terminal statuses are closed after the given
// delay from creation.
func (b *RequestBuilder) InStatus(status dsrmodels.Status, closedAfter time.Duration) *RequestBuilder {
	b.req.Status = status
	closed := b.req.CreatedAt.Add(closedAfter)
	switch status {
	case dsrmodels.StatusCompleted:
		b.req.DecidedAt = &closed
		b.req.CompletedAt = &closed
	case dsrmodels.StatusRejected:
		b.req.DecidedAt = &closed
	case dsrmodels.StatusProcessing, dsrmodels.StatusFailed:
		started := b.req.CreatedAt.Add(closedAfter)
		b.req.ProcessingStartedAt = &started
	}
	return b
}

func (b *RequestBuilder) Build() *dsrmodels.Request {
	return b.req
}

// NewTestTenant creates an active FREE tenant with the given ID and name.
func NewTestTenant(tenantID id.TenantID, name string) *tenantmodels.Tenant {
	return NewTenantBuilder().
		WithID(tenantID).
		WithName(name).
		Build()
}
