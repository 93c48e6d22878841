// Package memory is an in-process record provider used by tests and local runs.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"dataguard/internal/purge"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/tx"
)

// Record is one stored domain record.
type Record struct {
	TenantID     id.TenantID
	ID           string
	Subject      string
	LastActivity time.Time
	Fields       map[string]string
}

type recordKey struct {
	tenant id.TenantID
	id     string
}

// Provider keeps records of a single type in memory. Deletions join the
// in-memory transaction in ctx and are restored on rollback.
type Provider struct {
	recordType string

	mu       sync.RWMutex
	records  map[recordKey]Record
	failures map[string]error
}

var (
	_ purge.Provider        = (*Provider)(nil)
	_ purge.SubjectExporter = (*Provider)(nil)
)

func New(recordType string) *Provider {
	return &Provider{
		recordType: recordType,
		records:    make(map[recordKey]Record),
		failures:   make(map[string]error),
	}
}

func (p *Provider) RecordType() string { return p.recordType }

// Put inserts or replaces rec.
func (p *Provider) Put(rec Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec.Fields = maps.Clone(rec.Fields)
	p.records[recordKey{tenant: rec.TenantID, id: rec.ID}] = rec
}

// FailOn makes DeleteOrRedact return err for recordID until cleared with a nil err.
func (p *Provider) FailOn(recordID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, recordID)
		return
	}
	p.failures[recordID] = err
}

// Has reports whether the record is still stored.
func (p *Provider) Has(tenantID id.TenantID, recordID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.records[recordKey{tenant: tenantID, id: recordID}]
	return ok
}

// Len counts the records stored for tenantID.
func (p *Provider) Len(tenantID id.TenantID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for k := range p.records {
		if k.tenant == tenantID {
			n++
		}
	}
	return n
}

func (p *Provider) ListStale(_ context.Context, tenantID id.TenantID, cutoff time.Time) ([]purge.RecordRef, error) {
	return p.list(tenantID, func(r Record) bool { return r.LastActivity.Before(cutoff) }), nil
}

func (p *Provider) ListBySubject(_ context.Context, tenantID id.TenantID, subject string) ([]purge.RecordRef, error) {
	return p.list(tenantID, func(r Record) bool { return r.Subject == subject }), nil
}

func (p *Provider) list(tenantID id.TenantID, match func(Record) bool) []purge.RecordRef {
	p.mu.RLock()
	var refs []purge.RecordRef
	for k, r := range p.records {
		if k.tenant != tenantID || !match(r) {
			continue
		}
		refs = append(refs, purge.RecordRef{
			TenantID:     tenantID,
			Type:         p.recordType,
			ID:           r.ID,
			Subject:      r.Subject,
			LastActivity: r.LastActivity,
		})
	}
	p.mu.RUnlock()

	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].LastActivity.Equal(refs[j].LastActivity) {
			return refs[i].LastActivity.Before(refs[j].LastActivity)
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

func (p *Provider) DeleteOrRedact(ctx context.Context, ref purge.RecordRef) (bool, error) {
	key := recordKey{tenant: ref.TenantID, id: ref.ID}

	p.mu.Lock()
	if err, ok := p.failures[ref.ID]; ok {
		p.mu.Unlock()
		return false, err
	}
	rec, ok := p.records[key]
	if ok {
		delete(p.records, key)
	}
	p.mu.Unlock()

	if !ok {
		return false, nil
	}
	tx.OnRollback(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.records[key] = rec
	})
	return true, nil
}

func (p *Provider) ExportSubject(_ context.Context, tenantID id.TenantID, subject string) ([]purge.ExportedRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []purge.ExportedRecord
	for k, r := range p.records {
		if k.tenant != tenantID || r.Subject != subject {
			continue
		}
		out = append(out, purge.ExportedRecord{
			Type:         p.recordType,
			ID:           r.ID,
			LastActivity: r.LastActivity,
			Fields:       maps.Clone(r.Fields),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
