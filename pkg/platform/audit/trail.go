// Package audit implements the per-tenant, hash-chained, append-only audit trail.
//
// Every mutating compliance operation records exactly one Event through a
// Recorder. Events are masked before they are hashed, so personal data never
// enters the chain.
package audit

import (
	"context"
	"log/slog"
	"time"

	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit/metrics"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/platform/middleware/request"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/privacy"
)

// Trail masks, links and persists audit events.
type Trail struct {
	store   Store
	masker  *privacy.Masker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Trail.
type Option func(*Trail)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) {
		t.metrics = m
	}
}

// NewTrail creates a Trail. A nil masker applies the default field list with
// PII capture disabled.
func NewTrail(store Store, masker *privacy.Masker, opts ...Option) *Trail {
	if masker == nil {
		masker = privacy.NewMasker(privacy.DefaultMaskedFields, false)
	}
	t := &Trail{
		store:  store,
		masker: masker,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append links ev to its tenant's chain and persists it. Missing ID, actor and
// timestamp are filled from ctx. E-mail addresses in the actor are masked. When ctx carries a transaction the event
// commits or rolls back with it.
func (t *Trail) Append(ctx context.Context, ev Event) (*Event, error) {
	if ev.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit event requires a tenant")
	}
	if ev.Action == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit event requires an action")
	}

	start := time.Now()
	if uuidIsNil(ev.ID) {
		ev.ID = id.NewAuditEventID()
	}
	if ev.Actor == "" {
		ev.Actor = admin.Actor(ctx)
	}
	ev.Actor = t.masker.MaskValue(ev.Actor)
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = requesttime.Now(ctx)
	}
	// Postgres keeps microseconds; the hash must survive a round trip.
	ev.OccurredAt = ev.OccurredAt.UTC().Truncate(time.Microsecond)

	payload := t.masker.Mask(ev.Payload)
	if reqID := request.GetRequestID(ctx); reqID != "" {
		payload["request_id"] = reqID
	}
	ev.Payload = payload

	if err := t.store.Append(ctx, &ev); err != nil {
		if t.metrics != nil {
			t.metrics.IncAppendFailures()
		}
		t.logger.ErrorContext(ctx, "audit append failed",
			"tenant_id", ev.TenantID.String(),
			"action", string(ev.Action),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeAuditWrite, "failed to record audit event")
	}

	if t.metrics != nil {
		t.metrics.IncAppended(string(ev.Action))
		t.metrics.ObserveAppendDuration(time.Since(start).Seconds())
	}
	t.logger.DebugContext(ctx, "audit event appended",
		"tenant_id", ev.TenantID.String(),
		"seq", ev.Seq,
		"action", string(ev.Action),
	)
	return &ev, nil
}

// List returns the tenant's events matching filter, newest first.
func (t *Trail) List(ctx context.Context, tenantID id.TenantID, filter Filter) ([]Event, error) {
	events, err := t.store.List(ctx, tenantID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}

// CountByAction counts the tenant's events per action since the given instant.
func (t *Trail) CountByAction(ctx context.Context, tenantID id.TenantID, since time.Time) (map[Action]int, error) {
	counts, err := t.store.CountByAction(ctx, tenantID, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count audit events")
	}
	return counts, nil
}

// Verify walks the tenant's chain and checks sequence density, prev_hash
// linkage and every stored hash.
func (t *Trail) Verify(ctx context.Context, tenantID id.TenantID) (*VerifyReport, error) {
	v := newVerifier()
	if err := t.store.Scan(ctx, tenantID, func(ev Event) error {
		v.visit(ev)
		return nil
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit chain")
	}
	if t.metrics != nil {
		t.metrics.ObserveVerify(len(v.report.Errors))
	}
	if !v.report.OK {
		t.logger.WarnContext(ctx, "audit chain verification failed",
			"tenant_id", tenantID.String(),
			"errors", len(v.report.Errors),
		)
	}
	return &v.report, nil
}

func uuidIsNil(eventID id.AuditEventID) bool {
	return eventID == id.AuditEventID{}
}
