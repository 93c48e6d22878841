package purge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dataguard/internal/purge/metrics"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/tracer"
	"dataguard/pkg/platform/tx"
)

// Failure reasons recorded on FAILED outcomes.
const (
	ReasonUnknownType = "unknown_record_type"
	ReasonAuditWrite  = "audit_write_failed"
	ReasonInterrupted = "interrupted"
)

const unauditedSuffix = "; failure not audited"

type Option func(*Executor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Executor removes single records through their provider.
type Executor struct {
	registry *Registry
	auditor  audit.Recorder
	tx       tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
}

func NewExecutor(registry *Registry, auditor audit.Recorder, runner tx.Runner, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		auditor:  auditor,
		tx:       runner,
		logger:   logger,
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the providers the executor dispatches to.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Purge deletes or redacts ref and appends RECORD_PURGED or
// RECORD_PURGE_NOT_FOUND in the same transaction. When either step fails the
// transaction is rolled back and a single RECORD_PURGE_FAILED event is written
// instead. Purge never returns an error; failures are carried by the outcome.
func (e *Executor) Purge(ctx context.Context, ref RecordRef) Outcome {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "purge.record",
		tracer.String("record_type", ref.Type),
		tracer.String("tenant_id", ref.TenantID.String()),
	)

	out := e.purge(ctx, ref)

	span.SetAttributes(tracer.String("outcome", string(out.Status)))
	var spanErr error
	if out.Status == StatusFailed {
		spanErr = errors.New(out.Reason)
	}
	span.End(spanErr)
	if e.metrics != nil {
		e.metrics.ObserveOutcome(ref.Type, string(out.Status), time.Since(start).Seconds())
	}
	return out
}

func (e *Executor) purge(ctx context.Context, ref RecordRef) Outcome {
	provider, ok := e.registry.Get(ref.Type)
	if !ok {
		return e.fail(ctx, ref, ReasonUnknownType)
	}

	var status Status
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		found, err := provider.DeleteOrRedact(ctx, ref)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodePurgeFailure, "delete or redact "+ref.Type+": "+err.Error())
		}
		action := audit.ActionRecordPurged
		status = StatusSuccess
		if !found {
			status, action = StatusNotFound, audit.ActionRecordPurgeNotFound
		}
		_, err = e.auditor.Append(ctx, e.event(ref, action, ""))
		return err
	})
	if err != nil {
		return e.fail(ctx, ref, failureReason(err))
	}

	e.logger.DebugContext(ctx, "record purged",
		"tenant_id", ref.TenantID.String(),
		"record_type", ref.Type,
		"record_id", ref.ID,
		"outcome", string(status),
	)
	return Outcome{Status: status}
}

// fail writes the failure event outside the rolled back transaction. The
// outcome stays FAILED even when that write fails too.
func (e *Executor) fail(ctx context.Context, ref RecordRef, reason string) Outcome {
	ctx = context.WithoutCancel(ctx)
	if _, err := e.auditor.Append(ctx, e.event(ref, audit.ActionRecordPurgeFailed, reason)); err != nil {
		if e.metrics != nil {
			e.metrics.IncUnauditedFailure()
		}
		e.logger.ErrorContext(ctx, "failed to audit purge failure",
			"tenant_id", ref.TenantID.String(),
			"record_type", ref.Type,
			"record_id", ref.ID,
			"reason", reason,
			"error", err,
		)
		reason += unauditedSuffix
	}
	e.logger.WarnContext(ctx, "record purge failed",
		"tenant_id", ref.TenantID.String(),
		"record_type", ref.Type,
		"record_id", ref.ID,
		"reason", reason,
	)
	return Outcome{Status: StatusFailed, Reason: reason}
}

func (e *Executor) event(ref RecordRef, action audit.Action, reason string) audit.Event {
	payload := map[string]string{
		"record_type": ref.Type,
		"record_id":   ref.ID,
	}
	if ref.Subject != "" {
		payload["subject"] = ref.Subject
	}
	if !ref.LastActivity.IsZero() {
		payload["last_activity"] = ref.LastActivity.UTC().Format(time.RFC3339)
	}
	if reason != "" {
		payload["reason"] = reason
	}
	return audit.Event{
		TenantID:   ref.TenantID,
		Action:     action,
		TargetType: ref.Type,
		TargetID:   ref.ID,
		Payload:    payload,
	}
}

func failureReason(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeAuditWrite):
		return ReasonAuditWrite
	case dErrors.HasCode(err, dErrors.CodeTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ReasonInterrupted
	}
	return err.Error()
}

// RecordOutcome pairs a record with what happened to it.
type RecordOutcome struct {
	Ref     RecordRef `json:"ref"`
	Outcome Outcome   `json:"outcome"`
}

// SubjectSummary tallies a PurgeSubject call.
type SubjectSummary struct {
	Succeeded int             `json:"succeeded"`
	NotFound  int             `json:"not_found"`
	Failed    int             `json:"failed"`
	Records   []RecordOutcome `json:"records"`
}

// Complete reports whether every record ended SUCCESS or NOT_FOUND.
func (s *SubjectSummary) Complete() bool {
	return s.Failed == 0
}

func (s *SubjectSummary) add(ref RecordRef, out Outcome) {
	switch out.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusNotFound:
		s.NotFound++
	default:
		s.Failed++
	}
	s.Records = append(s.Records, RecordOutcome{Ref: ref, Outcome: out})
}

// PurgeSubject purges every record of subject across all providers. A listing
// failure for one provider counts as a failed record of that type so the
// remaining providers still run. Cancellation stops the walk and returns the
// partial summary with a timeout error.
func (e *Executor) PurgeSubject(ctx context.Context, tenantID id.TenantID, subject string) (*SubjectSummary, error) {
	summary := &SubjectSummary{}
	for _, p := range e.registry.Providers() {
		if err := ctx.Err(); err != nil {
			return summary, dErrors.Wrap(err, dErrors.CodeTimeout, "subject purge interrupted")
		}
		refs, err := p.ListBySubject(ctx, tenantID, subject)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to list subject records",
				"tenant_id", tenantID.String(),
				"record_type", p.RecordType(),
				"error", err,
			)
			summary.add(RecordRef{TenantID: tenantID, Type: p.RecordType()},
				Outcome{Status: StatusFailed, Reason: "list failed: " + err.Error()})
			continue
		}
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return summary, dErrors.Wrap(err, dErrors.CodeTimeout, "subject purge interrupted")
			}
			if ref.Subject == "" {
				ref.Subject = subject
			}
			summary.add(ref, e.Purge(ctx, ref))
		}
	}
	return summary, nil
}
