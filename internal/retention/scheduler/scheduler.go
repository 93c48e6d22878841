// Package scheduler runs the periodic retention purge. Each tick walks the
// active tenants, computes their cutoff from the retention policy and hands
// every stale record to the purge executor, skipping what earlier runs
// already settled.
package scheduler

//go:generate mockgen -source=scheduler.go -destination=mocks/mocks.go -package=mocks TenantDirectory,RunStore,StaleRecoverer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"dataguard/internal/notify"
	"dataguard/internal/platform/scheduling"
	"dataguard/internal/purge"
	"dataguard/internal/retention"
	"dataguard/internal/retention/lease"
	"dataguard/internal/retention/metrics"
	"dataguard/internal/retention/runs"
	tenantmodels "dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tracer"
	"dataguard/pkg/platform/tx"
)

// TaskName is the periodic task registered with the scheduling runner.
const TaskName = "retention-purge"

// TenantDirectory lists the tenants to purge.
type TenantDirectory interface {
	ListActive(ctx context.Context) ([]*tenantmodels.Tenant, error)
	Get(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)
}

// Purger removes one record and reports what happened.
type Purger interface {
	Purge(ctx context.Context, ref purge.RecordRef) purge.Outcome
	Registry() *purge.Registry
}

// RunStore persists runs and their outcomes.
// Error Contract:
// - AppendOutcome and Finish return sentinel.ErrNotFound for an unknown run
// - ResetAttempts returns sentinel.ErrNotFound when the record has no counted failures
type RunStore interface {
	Create(ctx context.Context, run *runs.Run) error
	AppendOutcome(ctx context.Context, o runs.Outcome) error
	Finish(ctx context.Context, run *runs.Run) error
	Ledger(ctx context.Context, tenantID id.TenantID) (*runs.Ledger, error)
	List(ctx context.Context, tenantID id.TenantID, limit int) ([]*runs.Run, error)
	MarkInterrupted(ctx context.Context, tenantID id.TenantID, now time.Time) (int, error)
	ResetAttempts(ctx context.Context, tenantID id.TenantID, recordType, recordID string) error
}

// StaleRecoverer fails data-subject requests stuck in processing.
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Config bounds one tick.
type Config struct {
	MaxPurgeAttempts   int
	NotifyOnFailure    bool
	Concurrency        int
	RatePerSecond      float64
	LeaseTTL           time.Duration
	StaleProcessingTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPurgeAttempts:   3,
		NotifyOnFailure:    true,
		Concurrency:        4,
		RatePerSecond:      50,
		LeaseTTL:           10 * time.Minute,
		StaleProcessingTTL: time.Hour,
	}
}

type Option func(*Scheduler)

func WithRecoverer(r StaleRecoverer) Option {
	return func(s *Scheduler) {
		s.recoverer = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = t
	}
}

// Scheduler owns purge run creation.
type Scheduler struct {
	tenants   TenantDirectory
	resolver  *retention.Resolver
	purger    Purger
	runs      RunStore
	locker    lease.Locker
	auditor   audit.Recorder
	tx        tx.Runner
	sink      notify.Sink
	logger    *slog.Logger
	cfg       Config
	limiter   *rate.Limiter
	recoverer StaleRecoverer
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
}

func New(
	tenants TenantDirectory,
	resolver *retention.Resolver,
	purger Purger,
	runStore RunStore,
	locker lease.Locker,
	auditor audit.Recorder,
	runner tx.Runner,
	sink notify.Sink,
	logger *slog.Logger,
	cfg Config,
	opts ...Option,
) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxPurgeAttempts <= 0 {
		cfg.MaxPurgeAttempts = def.MaxPurgeAttempts
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	s := &Scheduler{
		tenants:  tenants,
		resolver: resolver,
		purger:   purger,
		runs:     runStore,
		locker:   locker,
		auditor:  auditor,
		tx:       runner,
		sink:     sink,
		logger:   logger,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register schedules Tick on runner.
func (s *Scheduler) Register(runner *scheduling.Runner, schedule string) error {
	return runner.Add(TaskName, schedule, s.Tick)
}

// Tick recovers stale requests and runs every active tenant. Tenants run
// concurrently up to the configured bound; a tenant whose lease is held
// elsewhere is skipped and a failing tenant never stops the others.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.recoverer != nil && s.cfg.StaleProcessingTTL > 0 {
		cutoff := requesttime.Now(ctx).Add(-s.cfg.StaleProcessingTTL)
		if _, err := s.recoverer.RecoverStale(ctx, cutoff); err != nil {
			s.logger.ErrorContext(ctx, "failed to recover stale requests", "error", err)
		}
	}

	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, t := range tenants {
		g.Go(func() error {
			_, err := s.RunTenant(ctx, t, runs.TriggerSchedule)
			switch {
			case errors.Is(err, sentinel.ErrLeaseHeld):
				if s.metrics != nil {
					s.metrics.IncLeaseSkip()
				}
				s.logger.DebugContext(ctx, "tenant lease held elsewhere, skipping", "tenant_id", t.ID.String())
			case err != nil:
				s.logger.ErrorContext(ctx, "tenant purge run failed", "tenant_id", t.ID.String(), "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// TriggerPurgeNow runs one tenant outside the schedule.
func (s *Scheduler) TriggerPurgeNow(ctx context.Context, tenantID id.TenantID) (*runs.Run, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "tenant is suspended")
	}
	run, err := s.RunTenant(ctx, t, runs.TriggerManual)
	if errors.Is(err, sentinel.ErrLeaseHeld) {
		return nil, dErrors.New(dErrors.CodeConflict, "a purge run is already in progress for this tenant")
	}
	if run != nil {
		// Partial failures are already carried by the run's counts.
		if err != nil {
			s.logger.WarnContext(ctx, "manual purge run finished with errors", "tenant_id", tenantID.String(), "error", err)
		}
		return run, nil
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return nil, err
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "purge run failed")
}

// RunTenant holds the tenant lease for the whole run. It returns
// sentinel.ErrLeaseHeld when another worker is purging the tenant.
func (s *Scheduler) RunTenant(ctx context.Context, t *tenantmodels.Tenant, trigger runs.Trigger) (*runs.Run, error) {
	heldCtx, release, err := lease.Hold(ctx, s.locker, LeaseKey(t.ID), s.cfg.LeaseTTL, s.logger)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.run(heldCtx, t, trigger)
}

func LeaseKey(tenantID id.TenantID) string {
	return "purge:" + tenantID.String()
}

func (s *Scheduler) run(ctx context.Context, t *tenantmodels.Tenant, trigger runs.Trigger) (run *runs.Run, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "retention.run_tenant",
		tracer.String("tenant_id", t.ID.String()),
		tracer.String("trigger", string(trigger)),
	)
	defer func() { span.End(err) }()

	now := requesttime.Now(ctx)
	cutoff, err := s.resolver.Cutoff(t.Tier, now)
	if err != nil {
		return nil, err
	}

	if n, err := s.runs.MarkInterrupted(ctx, t.ID, now); err != nil {
		return nil, fmt.Errorf("close interrupted runs: %w", err)
	} else if n > 0 {
		s.logger.WarnContext(ctx, "closed interrupted purge runs", "tenant_id", t.ID.String(), "count", n)
	}

	run = runs.NewRun(t.ID, cutoff, trigger, now)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.runs.Create(ctx, run); err != nil {
			return fmt.Errorf("create purge run: %w", err)
		}
		_, err := s.auditor.Append(ctx, audit.Event{
			TenantID:   t.ID,
			Action:     audit.ActionRetentionPurgeStarted,
			TargetType: audit.TargetPurgeRun,
			TargetID:   run.ID.String(),
			Payload: map[string]string{
				"cutoff":    cutoff.UTC().Format(time.RFC3339),
				"trigger":   string(trigger),
				"plan_tier": string(t.Tier),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ledger, err := s.runs.Ledger(ctx, t.ID)
	if err != nil {
		err = fmt.Errorf("load purge ledger: %w", err)
	} else {
		err = s.sweep(ctx, run, ledger)
	}

	closeCtx := context.WithoutCancel(ctx)
	run.Finish(requesttime.Now(closeCtx), ctx.Err() != nil)
	if closeErr := s.finish(closeCtx, run); closeErr != nil {
		err = errors.Join(err, closeErr)
	}

	span.SetAttributes(
		tracer.Int("succeeded", run.Succeeded),
		tracer.Int("not_found", run.NotFound),
		tracer.Int("failed", run.Failed),
		tracer.Int("skipped", run.Skipped),
	)
	if s.metrics != nil {
		s.metrics.IncRun(string(run.Status))
		s.metrics.ObserveRun(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "purge run finished",
		"tenant_id", t.ID.String(),
		"run_id", run.ID.String(),
		"status", string(run.Status),
		"succeeded", run.Succeeded,
		"not_found", run.NotFound,
		"failed", run.Failed,
		"skipped", run.Skipped,
	)
	return run, err
}

// sweep purges every stale record the ledger does not rule out. Provider
// listing errors are collected so the remaining providers still run.
func (s *Scheduler) sweep(ctx context.Context, run *runs.Run, ledger *runs.Ledger) error {
	var errs []error
	for _, p := range s.purger.Registry().Providers() {
		if ctx.Err() != nil {
			return errors.Join(append(errs, ctx.Err())...)
		}
		refs, err := p.ListStale(ctx, run.TenantID, run.Cutoff)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to list stale records",
				"tenant_id", run.TenantID.String(), "record_type", p.RecordType(), "error", err)
			errs = append(errs, fmt.Errorf("list stale %s: %w", p.RecordType(), err))
			continue
		}
		for _, ref := range refs {
			if !retention.Eligible(ref.LastActivity, run.Cutoff) {
				continue
			}
			key := ref.Key()
			if ledger.Settled(key) || ledger.Attempts(key) >= s.cfg.MaxPurgeAttempts {
				run.Skipped++
				s.countRecord("skipped")
				continue
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return errors.Join(append(errs, err)...)
			}

			out := s.purger.Purge(ctx, ref)
			run.Count(out.Status)
			s.countRecord(string(out.Status))
			o := runs.NewOutcome(run, ref, out, requesttime.Now(ctx))
			if err := s.runs.AppendOutcome(context.WithoutCancel(ctx), o); err != nil {
				errs = append(errs, fmt.Errorf("record purge outcome: %w", err))
			}
			ledger.Observe(o)

			if out.Status == purge.StatusFailed && ledger.Attempts(key) == s.cfg.MaxPurgeAttempts {
				s.escalate(ctx, ref, ledger.Attempts(key), out.Reason)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) escalate(ctx context.Context, ref purge.RecordRef, attempts int, reason string) {
	if s.metrics != nil {
		s.metrics.IncEscalation()
	}
	s.logger.ErrorContext(ctx, "record reached purge retry bound",
		"tenant_id", ref.TenantID.String(),
		"record_type", ref.Type,
		"record_id", ref.ID,
		"attempts", attempts,
	)
	if !s.cfg.NotifyOnFailure || s.sink == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	err := s.sink.Notify(ctx, notify.Event{
		Type:       notify.EventPurgeFailureEscalated,
		TenantID:   ref.TenantID,
		OccurredAt: requesttime.Now(ctx),
		Attributes: map[string]string{
			"record_type": ref.Type,
			"record_id":   ref.ID,
			"attempts":    strconv.Itoa(attempts),
			"reason":      reason,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send escalation", "tenant_id", ref.TenantID.String(), "error", err)
	}
}

func (s *Scheduler) finish(ctx context.Context, run *runs.Run) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.runs.Finish(ctx, run); err != nil {
			return fmt.Errorf("finish purge run: %w", err)
		}
		_, err := s.auditor.Append(ctx, audit.Event{
			TenantID:   run.TenantID,
			Action:     audit.ActionRetentionPurgeRun,
			TargetType: audit.TargetPurgeRun,
			TargetID:   run.ID.String(),
			Payload: map[string]string{
				"status":    string(run.Status),
				"cutoff":    run.Cutoff.UTC().Format(time.RFC3339),
				"succeeded": strconv.Itoa(run.Succeeded),
				"not_found": strconv.Itoa(run.NotFound),
				"failed":    strconv.Itoa(run.Failed),
				"skipped":   strconv.Itoa(run.Skipped),
			},
		})
		return err
	})
}

func (s *Scheduler) countRecord(result string) {
	if s.metrics != nil {
		s.metrics.IncRecord(result)
	}
}

// ListRuns returns the tenant's runs newest first.
func (s *Scheduler) ListRuns(ctx context.Context, tenantID id.TenantID, limit int) ([]*runs.Run, error) {
	list, err := s.runs.List(ctx, tenantID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list purge runs")
	}
	return list, nil
}

// Escalated returns the records that exhausted their purge attempts and are
// still not removed.
func (s *Scheduler) Escalated(ctx context.Context, tenantID id.TenantID) ([]runs.Failure, error) {
	ledger, err := s.runs.Ledger(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load purge ledger")
	}
	return ledger.Escalated(s.cfg.MaxPurgeAttempts), nil
}

// ResetPurgeAttempts clears the failed attempts of one record so the next run
// tries it again. Operators use it once the cause of an escalation is fixed.
func (s *Scheduler) ResetPurgeAttempts(ctx context.Context, tenantID id.TenantID, recordType, recordID string) error {
	if recordType == "" || recordID == "" {
		return dErrors.New(dErrors.CodeValidation, "record type and record id are required")
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.runs.ResetAttempts(ctx, tenantID, recordType, recordID); err != nil {
			return err
		}
		_, err := s.auditor.Append(ctx, audit.Event{
			TenantID:   tenantID,
			Action:     audit.ActionRecordPurgeReset,
			TargetType: recordType,
			TargetID:   recordID,
			Payload: map[string]string{
				"record_type": recordType,
				"record_id":   recordID,
			},
		})
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record has no failed purge attempts")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset purge attempts")
	}
}
