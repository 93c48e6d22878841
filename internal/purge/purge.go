// Package purge deletes or redacts personal records held by other domains and
// leaves exactly one audit event behind for every attempt.
package purge

//go:generate mockgen -source=purge.go -destination=mocks/provider_mock.go -package=mocks Provider

import (
	"context"
	"fmt"
	"time"

	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
)

// Status is the result of one purge attempt.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusNotFound Status = "NOT_FOUND"
	StatusFailed   Status = "FAILED"
)

// RecordRef points at one record owned by a provider.
type RecordRef struct {
	TenantID     id.TenantID `json:"tenant_id"`
	Type         string      `json:"record_type"`
	ID           string      `json:"record_id"`
	Subject      string      `json:"-"`
	LastActivity time.Time   `json:"last_activity"`
}

// Key identifies the record across runs.
func (r RecordRef) Key() string {
	return r.Type + "/" + r.ID
}

// Outcome is what happened to a record. Reason is empty on success.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Provider enumerates and removes the records of one record type.
//
// Contract:
//   - ListStale returns records whose last activity is strictly before cutoff
//   - DeleteOrRedact reports found=false when the record is already gone; it must
//     honour the transaction carried by ctx so a failed audit append undoes it
type Provider interface {
	RecordType() string
	ListStale(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]RecordRef, error)
	ListBySubject(ctx context.Context, tenantID id.TenantID, subject string) ([]RecordRef, error)
	DeleteOrRedact(ctx context.Context, ref RecordRef) (found bool, err error)
}

// ExportedRecord is a copy of a subject's record for an access bundle.
type ExportedRecord struct {
	Type         string            `json:"record_type"`
	ID           string            `json:"record_id"`
	LastActivity time.Time         `json:"last_activity"`
	Fields       map[string]string `json:"fields"`
}

// SubjectExporter is implemented by providers that can copy out a subject's data.
type SubjectExporter interface {
	ExportSubject(ctx context.Context, tenantID id.TenantID, subject string) ([]ExportedRecord, error)
}

// Registry holds providers in registration order.
type Registry struct {
	byType map[string]Provider
	order  []Provider
}

// NewRegistry rejects empty or duplicate record types.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byType: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		t := p.RecordType()
		if t == "" {
			return nil, dErrors.New(dErrors.CodeConfiguration, "purge provider has an empty record type")
		}
		if _, dup := r.byType[t]; dup {
			return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("duplicate purge provider for %q", t))
		}
		r.byType[t] = p
		r.order = append(r.order, p)
	}
	return r, nil
}

func (r *Registry) Get(recordType string) (Provider, bool) {
	p, ok := r.byType[recordType]
	return p, ok
}

func (r *Registry) Providers() []Provider {
	return r.order
}

// Exporters returns the providers that implement SubjectExporter.
func (r *Registry) Exporters() []SubjectExporter {
	var out []SubjectExporter
	for _, p := range r.order {
		if e, ok := p.(SubjectExporter); ok {
			out = append(out, e)
		}
	}
	return out
}
