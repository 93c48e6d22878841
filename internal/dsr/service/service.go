package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,SubjectPurger,Exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"dataguard/internal/dsr/metrics"
	"dataguard/internal/dsr/models"
	"dataguard/internal/purge"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/sentinel"
	pSync "dataguard/pkg/platform/sync"
	"dataguard/pkg/platform/tracer"
	"dataguard/pkg/platform/tx"
	"dataguard/pkg/validation"
)

// SystemReviewer is recorded as the reviewer of automatic decisions.
const SystemReviewer = "system"

const (
	ReasonInterrupted     = "interrupted"
	ReasonStaleProcessing = "stale_processing"
	NoteRectification     = "rectification_recorded"
)

// Store persists requests.
// Error Contract:
// - CreateWithinLimit returns sentinel.ErrLimitExceeded when the tenant already has maxPending open requests
// - Update returns sentinel.ErrConflict when the stored version differs, sentinel.ErrNotFound when absent
// - FindByID returns sentinel.ErrNotFound
type Store interface {
	CreateWithinLimit(ctx context.Context, req *models.Request, maxPending int) error
	Update(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, tenantID id.TenantID, reqID id.DSRID) (*models.Request, error)
	List(ctx context.Context, tenantID id.TenantID, status models.Status) ([]*models.Request, error)
	ListProcessingBefore(ctx context.Context, cutoff time.Time) ([]*models.Request, error)
}

// SubjectPurger erases every record of one subject.
type SubjectPurger interface {
	PurgeSubject(ctx context.Context, tenantID id.TenantID, subject string) (*purge.SubjectSummary, error)
}

// Exporter assembles a subject's data and returns a bundle reference.
type Exporter interface {
	BuildExport(ctx context.Context, tenantID id.TenantID, subject string, kind string) (string, error)
}

// Policy bounds the lifecycle.
type Policy struct {
	MaxPendingRequests  int
	AutoApprovalEnabled bool
	AutoApprovalKinds   []models.Kind
	MaxProcessingDays   int
}

// DefaultPolicy mirrors the shipped configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxPendingRequests: 10,
		AutoApprovalKinds:  []models.Kind{models.KindAccess},
		MaxProcessingDays:  30,
	}
}

func (p Policy) budget() time.Duration {
	return time.Duration(p.MaxProcessingDays) * 24 * time.Hour
}

type Option func(*Service)

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// Service drives data-subject requests through their lifecycle. Every
// transition is written together with its audit event; transitions on one
// request are serialized in process and guarded by a version check in the
// store.
type Service struct {
	store    Store
	auditor  audit.Recorder
	tx       tx.Runner
	purger   SubjectPurger
	exporter Exporter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	policy   Policy
	locks    *pSync.KeyedMutex
}

func New(store Store, auditor audit.Recorder, runner tx.Runner, purger SubjectPurger, exporter Exporter, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		auditor:  auditor,
		tx:       runner,
		purger:   purger,
		exporter: exporter,
		logger:   logger,
		tracer:   tracer.NewNoop(),
		policy:   DefaultPolicy(),
		locks:    pSync.NewKeyedMutex(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitCommand is a new request as received from the data subject.
type SubmitCommand struct {
	Kind             models.Kind
	RequesterContact string
	SubjectID        string
	Reason           string
}

// Submit creates a request in REQUESTED, refusing when the tenant already has
// the maximum number of open requests. Kinds on the auto-approval list are
// decided right away with SystemReviewer.
func (s *Service) Submit(ctx context.Context, tenantID id.TenantID, cmd SubmitCommand) (*models.Request, error) {
	if err := validation.CheckStringLength("requester_contact", cmd.RequesterContact, validation.MaxSubjectLength); err != nil {
		return nil, err
	}
	if err := validation.CheckStringLength("subject_id", cmd.SubjectID, validation.MaxSubjectLength); err != nil {
		return nil, err
	}
	if err := validation.CheckStringLength("reason", cmd.Reason, validation.MaxReasonLength); err != nil {
		return nil, err
	}
	req, err := models.NewRequest(tenantID, cmd.Kind, cmd.RequesterContact, cmd.SubjectID, cmd.Reason, requesttime.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateWithinLimit(ctx, req, s.policy.MaxPendingRequests); err != nil {
			if errors.Is(err, sentinel.ErrLimitExceeded) {
				return dErrors.New(dErrors.CodeTooManyPending,
					fmt.Sprintf("tenant already has %d open requests", s.policy.MaxPendingRequests))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
		}
		return s.emit(ctx, req, audit.ActionDSRRequested, map[string]string{
			"kind":              string(req.Kind),
			"requester_contact": req.RequesterContact,
			"subject":           req.SubjectID,
			"reason":            req.Reason,
		})
	})
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeTooManyPending) {
			s.metrics.IncRefused("too_many_pending")
		}
		s.logger.WarnContext(ctx, "request submission refused",
			"tenant_id", tenantID.String(),
			"kind", string(cmd.Kind),
			"error", err,
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncSubmitted(string(req.Kind))
		s.metrics.IncTransition(string(req.Status))
	}
	s.logger.InfoContext(ctx, "request submitted",
		"tenant_id", tenantID.String(),
		"request_id", req.ID.String(),
		"kind", string(req.Kind),
	)

	if !s.autoApproves(req.Kind) {
		return req, nil
	}
	decided, err := s.Decide(admin.WithActor(ctx, SystemReviewer), tenantID, req.ID, true, SystemReviewer)
	if err != nil {
		s.logger.ErrorContext(ctx, "automatic approval failed",
			"tenant_id", tenantID.String(),
			"request_id", req.ID.String(),
			"error", err,
		)
		return req, nil
	}
	return decided, nil
}

func (s *Service) autoApproves(kind models.Kind) bool {
	return s.policy.AutoApprovalEnabled && slices.Contains(s.policy.AutoApprovalKinds, kind)
}

// Review assigns a reviewer and moves the request to IN_REVIEW.
func (s *Service) Review(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, reviewer string) (*models.Request, error) {
	reviewer, err := requireReviewer(reviewer)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, reqID, func(req *models.Request, now time.Time) (audit.Action, map[string]string, error) {
		if err := req.Apply(models.EventReview, now); err != nil {
			return "", nil, err
		}
		req.Reviewer = reviewer
		return audit.ActionDSRInReview, map[string]string{"reviewer": reviewer}, nil
	})
}

// Decide approves or rejects a request. A request still in REQUESTED is moved
// to IN_REVIEW first as part of the same write; exactly one DSR_APPROVED or
// DSR_REJECTED event is recorded either way.
func (s *Service) Decide(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, approve bool, reviewer string) (*models.Request, error) {
	reviewer, err := requireReviewer(reviewer)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, reqID, func(req *models.Request, now time.Time) (audit.Action, map[string]string, error) {
		payload := map[string]string{"reviewer": reviewer, "approved": strconv.FormatBool(approve)}
		if req.Status == models.StatusRequested {
			if err := req.Apply(models.EventReview, now); err != nil {
				return "", nil, err
			}
			payload["auto_review"] = "true"
		}
		ev, action := models.EventReject, audit.ActionDSRRejected
		if approve {
			ev, action = models.EventApprove, audit.ActionDSRApproved
		}
		if err := req.Apply(ev, now); err != nil {
			return "", nil, err
		}
		req.Reviewer = reviewer
		return action, payload, nil
	})
}

// Abandon closes a FAILED request as REJECTED.
func (s *Service) Abandon(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, reviewer string) (*models.Request, error) {
	reviewer, err := requireReviewer(reviewer)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, reqID, func(req *models.Request, now time.Time) (audit.Action, map[string]string, error) {
		last := req.FailureReason
		if err := req.Apply(models.EventAbandon, now); err != nil {
			return "", nil, err
		}
		req.Reviewer = reviewer
		return audit.ActionDSRAbandoned, map[string]string{"reviewer": reviewer, "last_failure": last}, nil
	})
}

// Process fulfils an APPROVED request, or retries a FAILED one. Erasure purges
// the subject across every registered record type and completes only if no
// record failed; access and portability build an export bundle; rectification
// records that the operator corrected the data. If ctx is cancelled midway the
// request lands in FAILED with reason "interrupted" and can be processed again.
//
// The request lock is held only for the opening and closing transitions. While
// the work runs the request sits in PROCESSING, which no other transition but
// the closing one and stale recovery accepts.
func (s *Service) Process(ctx context.Context, tenantID id.TenantID, reqID id.DSRID) (req *models.Request, err error) {
	key := reqID.String()

	ctx, span := s.tracer.Start(ctx, "dsr.process",
		tracer.String("tenant_id", tenantID.String()),
		tracer.String("request_id", key),
	)
	defer func() { span.End(err) }()
	start := time.Now()

	req, err = s.transition(ctx, tenantID, reqID, func(req *models.Request, now time.Time) (audit.Action, map[string]string, error) {
		ev := models.EventStart
		if req.Status == models.StatusFailed {
			ev = models.EventRetry
		}
		if err := req.Apply(ev, now); err != nil {
			return "", nil, err
		}
		return audit.ActionDSRProcessingStarted, map[string]string{
			"kind":  string(req.Kind),
			"retry": strconv.FormatBool(ev == models.EventRetry),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String("kind", string(req.Kind)))

	result, failure, workErr := s.fulfil(ctx, req)

	// The closing transition must be written even when ctx was cancelled.
	closeCtx := context.WithoutCancel(ctx)
	req, err = s.transition(closeCtx, tenantID, reqID, func(req *models.Request, now time.Time) (audit.Action, map[string]string, error) {
		req.Result = result
		if failure != "" {
			if err := req.Apply(models.EventFail, now); err != nil {
				return "", nil, err
			}
			req.FailureReason = failure
			return audit.ActionDSRFailed, map[string]string{"kind": string(req.Kind), "reason": failure}, nil
		}
		if err := req.Apply(models.EventComplete, now); err != nil {
			return "", nil, err
		}
		return audit.ActionDSRCompleted, completionPayload(req), nil
	})
	if err != nil {
		s.logger.ErrorContext(closeCtx, "failed to close request; it stays in PROCESSING until recovered",
			"tenant_id", tenantID.String(),
			"request_id", key,
			"error", err,
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveProcess(string(req.Kind), string(req.Status), time.Since(start).Seconds())
	}
	s.logger.InfoContext(closeCtx, "request processed",
		"tenant_id", tenantID.String(),
		"request_id", key,
		"kind", string(req.Kind),
		"status", string(req.Status),
		"failure_reason", req.FailureReason,
	)
	if workErr != nil {
		return req, workErr
	}
	return req, nil
}

// fulfil does the kind-specific work. A non-empty failure means the request
// must land in FAILED.
func (s *Service) fulfil(ctx context.Context, req *models.Request) (*models.Result, string, error) {
	switch req.Kind {
	case models.KindErasure:
		summary, err := s.purger.PurgeSubject(ctx, req.TenantID, req.SubjectID)
		result := &models.Result{Purge: condense(summary)}
		if err != nil {
			if ctx.Err() != nil {
				return result, ReasonInterrupted, dErrors.Wrap(err, dErrors.CodeTimeout, "erasure interrupted")
			}
			return result, "purge failed: " + err.Error(), nil
		}
		if !summary.Complete() {
			return result, fmt.Sprintf("%d record(s) could not be purged", summary.Failed), nil
		}
		return result, "", nil

	case models.KindAccess, models.KindPortability:
		ref, err := s.exporter.BuildExport(ctx, req.TenantID, req.SubjectID, string(req.Kind))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ReasonInterrupted, dErrors.Wrap(err, dErrors.CodeTimeout, "export interrupted")
			}
			return nil, "export failed: " + err.Error(), nil
		}
		return &models.Result{BundleRef: ref}, "", nil

	default:
		return &models.Result{Note: NoteRectification}, "", nil
	}
}

func condense(summary *purge.SubjectSummary) *models.PurgeSummary {
	if summary == nil {
		return &models.PurgeSummary{}
	}
	out := &models.PurgeSummary{
		Succeeded: summary.Succeeded,
		NotFound:  summary.NotFound,
		Failed:    summary.Failed,
	}
	for _, rec := range summary.Records {
		if rec.Outcome.Status != purge.StatusFailed {
			continue
		}
		out.Failures = append(out.Failures, models.PurgeFailEntry{
			RecordType: rec.Ref.Type,
			RecordID:   rec.Ref.ID,
			Reason:     rec.Outcome.Reason,
		})
	}
	return out
}

func completionPayload(req *models.Request) map[string]string {
	payload := map[string]string{"kind": string(req.Kind)}
	if req.Result == nil {
		return payload
	}
	if req.Result.BundleRef != "" {
		payload["bundle_ref"] = req.Result.BundleRef
	}
	if p := req.Result.Purge; p != nil {
		payload["succeeded"] = strconv.Itoa(p.Succeeded)
		payload["not_found"] = strconv.Itoa(p.NotFound)
	}
	if req.Result.Note != "" {
		payload["note"] = req.Result.Note
	}
	return payload
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID, reqID id.DSRID) (*models.Request, error) {
	req, err := s.store.FindByID(ctx, tenantID, reqID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return req, nil
}

// List returns the tenant's requests newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, tenantID id.TenantID, status models.Status) ([]*models.Request, error) {
	out, err := s.store.List(ctx, tenantID, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return out, nil
}

// Overdue lists open requests older than the processing budget. It only
// reports; no state changes.
func (s *Service) Overdue(ctx context.Context, tenantID id.TenantID, now time.Time) ([]*models.Request, error) {
	all, err := s.List(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	budget := s.policy.budget()
	out := make([]*models.Request, 0)
	for _, req := range all {
		if req.IsOverdue(now, budget) {
			out = append(out, req)
		}
	}
	return out, nil
}

// ProcessingBudget is how long a request may stay open before it is overdue.
func (s *Service) ProcessingBudget() time.Duration {
	return s.policy.budget()
}

// RecoverStale fails PROCESSING requests that started before cutoff, so a
// crash between start and close does not strand them. Requests whose lock is
// busy are left for the next call. It returns how many requests were
// recovered.
func (s *Service) RecoverStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.store.ListProcessingBefore(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stale requests")
	}

	var (
		recovered int
		errs      []error
	)
	for _, candidate := range stale {
		_, err := s.tryTransition(ctx, candidate.TenantID, candidate.ID, func(req *models.Request, now time.Time) (audit.Action, map[string]string, error) {
			if req.Status != models.StatusProcessing || req.ProcessingStartedAt == nil || !req.ProcessingStartedAt.Before(cutoff) {
				return "", nil, errSkip
			}
			if err := req.Apply(models.EventFail, now); err != nil {
				return "", nil, err
			}
			req.FailureReason = ReasonStaleProcessing
			return audit.ActionDSRFailed, map[string]string{"kind": string(req.Kind), "reason": ReasonStaleProcessing}, nil
		})
		switch {
		case errors.Is(err, errSkip):
		case err != nil:
			errs = append(errs, err)
		default:
			recovered++
			if s.metrics != nil {
				s.metrics.IncStaleRecovered()
			}
		}
	}
	if recovered > 0 {
		s.logger.WarnContext(ctx, "recovered stale requests", "count", recovered)
	}
	return recovered, errors.Join(errs...)
}

var errSkip = errors.New("skip")

type mutation func(req *models.Request, now time.Time) (audit.Action, map[string]string, error)

// transition serializes on the request and applies fn.
func (s *Service) transition(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, fn mutation) (*models.Request, error) {
	key := reqID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)
	return s.apply(ctx, tenantID, reqID, fn)
}

// tryTransition is transition without waiting: a busy lock yields errSkip.
func (s *Service) tryTransition(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, fn mutation) (*models.Request, error) {
	key := reqID.String()
	if !s.locks.TryLock(key) {
		return nil, errSkip
	}
	defer s.locks.Unlock(key)
	return s.apply(ctx, tenantID, reqID, fn)
}

// apply loads the request, mutates it with fn and writes it back together with
// the audit event fn names. The caller holds the request lock.
func (s *Service) apply(ctx context.Context, tenantID id.TenantID, reqID id.DSRID, fn mutation) (*models.Request, error) {
	var out *models.Request
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		req, err := s.store.FindByID(ctx, tenantID, reqID)
		if err != nil {
			return wrapStoreErr(err)
		}
		action, payload, err := fn(req, requesttime.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, req); err != nil {
			return wrapStoreErr(err)
		}
		if err := s.emit(ctx, req, action, payload); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(out.Status))
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, req *models.Request, action audit.Action, payload map[string]string) error {
	payload["status"] = string(req.Status)
	_, err := s.auditor.Append(ctx, audit.Event{
		TenantID:   req.TenantID,
		Action:     action,
		TargetType: audit.TargetDSR,
		TargetID:   req.ID.String(),
		Payload:    payload,
	})
	return err
}

func requireReviewer(reviewer string) (string, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return "", dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}
	if err := validation.CheckStringLength("reviewer", reviewer, validation.MaxSubjectLength); err != nil {
		return "", err
	}
	return reviewer, nil
}

func wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "request was modified concurrently")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "request store failure")
}
