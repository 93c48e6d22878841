package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dataguard/internal/notify"
	"dataguard/internal/purge"
	purgememory "dataguard/internal/purge/providers/memory"
	"dataguard/internal/retention"
	"dataguard/internal/retention/lease"
	"dataguard/internal/retention/runs"
	"dataguard/internal/retention/scheduler/mocks"
	tenantmodels "dataguard/internal/tenant/models"
	tenantservice "dataguard/internal/tenant/service"
	tenantstore "dataguard/internal/tenant/store"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	auditmemory "dataguard/pkg/platform/audit/store/memory"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/privacy"
	"dataguard/pkg/platform/tx"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSink) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) received() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// countingPurger cancels the run after stopAfter purges.
type countingPurger struct {
	*purge.Executor
	calls     atomic.Int32
	stopAfter int32
	cancel    context.CancelFunc
	seen      sync.Map
}

func (c *countingPurger) Purge(ctx context.Context, ref purge.RecordRef) purge.Outcome {
	out := c.Executor.Purge(ctx, ref)
	prev, _ := c.seen.LoadOrStore(ref.Key(), new(atomic.Int32))
	prev.(*atomic.Int32).Add(1)
	if n := c.calls.Add(1); c.cancel != nil && n == c.stopAfter {
		c.cancel()
	}
	return out
}

func (c *countingPurger) attempts(key string) int32 {
	v, ok := c.seen.Load(key)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

// brokenProvider fails to list records for one tenant.
type brokenProvider struct {
	*purgememory.Provider
	tenant id.TenantID
}

func (b brokenProvider) ListStale(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]purge.RecordRef, error) {
	if tenantID == b.tenant {
		return nil, errors.New("replica unavailable")
	}
	return b.Provider.ListStale(ctx, tenantID, cutoff)
}

type SchedulerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	now       time.Time
	ctx       context.Context
	logger    *slog.Logger
	trail     *audit.Trail
	txRunner  tx.Runner
	tenants   *tenantservice.Service
	resolver  *retention.Resolver
	contacts  *purgememory.Provider
	tickets   *purgememory.Provider
	executor  *purge.Executor
	runs      *runs.InMemoryStore
	locker    *lease.MemoryLocker
	sink      *recordingSink
	cfg       Config
	scheduler *Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.now = time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	s.ctx = requesttime.WithTime(context.Background(), s.now)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.trail = audit.NewTrail(auditmemory.NewInMemoryStore(), privacy.NewMasker(privacy.DefaultMaskedFields, false))
	s.txRunner = tx.NewMemoryRunner()
	s.tenants = tenantservice.New(tenantstore.NewInMemory(), s.trail, s.txRunner, s.logger)

	var err error
	s.resolver, err = retention.NewResolver(nil)
	s.Require().NoError(err)

	s.contacts = purgememory.New("contact")
	s.tickets = purgememory.New("ticket")
	registry, err := purge.NewRegistry(s.contacts, s.tickets)
	s.Require().NoError(err)
	s.executor = purge.NewExecutor(registry, s.trail, s.txRunner, s.logger)

	s.runs = runs.NewInMemoryStore()
	s.locker = lease.NewMemoryLocker()
	s.sink = &recordingSink{}
	s.cfg = Config{MaxPurgeAttempts: 3, NotifyOnFailure: true, Concurrency: 2, LeaseTTL: time.Minute}
	s.scheduler = s.build(s.executor, s.runs)
}

func (s *SchedulerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *SchedulerSuite) build(purger Purger, store RunStore, opts ...Option) *Scheduler {
	return New(s.tenants, s.resolver, purger, store, s.locker, s.trail, s.txRunner, s.sink, s.logger, s.cfg, opts...)
}

func (s *SchedulerSuite) register(name string, tier retention.Tier) *tenantmodels.Tenant {
	t, err := s.tenants.Register(s.ctx, name, tier)
	s.Require().NoError(err)
	return t
}

func (s *SchedulerSuite) cutoff(tier retention.Tier) time.Time {
	c, err := s.resolver.Cutoff(tier, s.now)
	s.Require().NoError(err)
	return c
}

func (s *SchedulerSuite) put(p *purgememory.Provider, tenant id.TenantID, recordID string, lastActivity time.Time) {
	p.Put(purgememory.Record{TenantID: tenant, ID: recordID, Subject: "subj-" + recordID, LastActivity: lastActivity})
}

func (s *SchedulerSuite) TestOnlyRecordsStrictlyBeforeCutoffArePurged() {
	t := s.register("acme", retention.TierFree)
	cutoff := s.cutoff(retention.TierFree)
	s.put(s.contacts, t.ID, "old", cutoff.Add(-time.Nanosecond))
	s.put(s.contacts, t.ID, "edge", cutoff)
	s.put(s.tickets, t.ID, "fresh", s.now.Add(-time.Hour))

	run, err := s.scheduler.TriggerPurgeNow(s.ctx, t.ID)

	s.Require().NoError(err)
	s.Equal(runs.StatusCompleted, run.Status)
	s.Equal(runs.TriggerManual, run.Trigger)
	s.Equal(cutoff, run.Cutoff)
	s.Equal(1, run.Succeeded)
	s.False(s.contacts.Has(t.ID, "old"))
	s.True(s.contacts.Has(t.ID, "edge"), "a record at the cutoff is retained")
	s.True(s.tickets.Has(t.ID, "fresh"))
}

func (s *SchedulerSuite) TestCutoffFollowsPlanTier() {
	free := s.register("free", retention.TierFree)
	business := s.register("business", retention.TierBusiness)
	age := s.now.AddDate(0, 0, -60)
	s.put(s.tickets, free.ID, "t-1", age)
	s.put(s.tickets, business.ID, "t-1", age)

	s.Require().NoError(s.scheduler.Tick(s.ctx))

	s.False(s.tickets.Has(free.ID, "t-1"))
	s.True(s.tickets.Has(business.ID, "t-1"), "365 day plan keeps a 60 day old record")
}

func (s *SchedulerSuite) TestRunIsAuditedAtStartAndFinish() {
	t := s.register("acme", retention.TierPro)
	old := s.cutoff(retention.TierPro).Add(-24 * time.Hour)
	s.put(s.contacts, t.ID, "c-1", old)
	s.put(s.tickets, t.ID, "t-1", old)

	run, err := s.scheduler.TriggerPurgeNow(s.ctx, t.ID)
	s.Require().NoError(err)

	events, err := s.trail.List(s.ctx, t.ID, audit.Filter{TargetType: audit.TargetPurgeRun})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionRetentionPurgeRun, events[0].Action)
	s.Equal(audit.ActionRetentionPurgeStarted, events[1].Action)
	s.Equal(run.ID.String(), events[0].TargetID)
	s.Equal("2", events[0].Payload["succeeded"])
	s.Equal("COMPLETED", events[0].Payload["status"])
	s.Equal("manual", events[1].Payload["trigger"])

	counts, err := s.trail.CountByAction(s.ctx, t.ID, time.Time{})
	s.Require().NoError(err)
	s.Equal(2, counts[audit.ActionRecordPurged])
}

func (s *SchedulerSuite) TestInterruptedRunResumesWithoutRepeatingPurges() {
	t := s.register("acme", retention.TierFree)
	old := s.cutoff(retention.TierFree).Add(-time.Hour)
	keys := []string{}
	for _, rid := range []string{"c-1", "c-2", "c-3"} {
		s.put(s.contacts, t.ID, rid, old)
		keys = append(keys, "contact/"+rid)
	}
	for _, rid := range []string{"t-1", "t-2"} {
		s.put(s.tickets, t.ID, rid, old)
		keys = append(keys, "ticket/"+rid)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	purger := &countingPurger{Executor: s.executor, stopAfter: 2, cancel: cancel}
	sched := s.build(purger, s.runs)

	first, err := sched.RunTenant(ctx, t, runs.TriggerSchedule)
	s.Require().Error(err)
	s.Require().NotNil(first)
	s.Equal(runs.StatusInterrupted, first.Status)
	s.Equal(2, first.Succeeded)

	purger.cancel = nil
	second, err := sched.RunTenant(s.ctx, t, runs.TriggerSchedule)
	s.Require().NoError(err)
	s.Equal(runs.StatusCompleted, second.Status)
	s.Equal(3, second.Succeeded)

	s.Zero(s.contacts.Len(t.ID))
	s.Zero(s.tickets.Len(t.ID))
	for _, key := range keys {
		s.Equal(int32(1), purger.attempts(key), "record %s", key)
	}
}

func (s *SchedulerSuite) TestCrashedRunIsClosedAsInterrupted() {
	t := s.register("acme", retention.TierFree)
	crashed := runs.NewRun(t.ID, s.cutoff(retention.TierFree), runs.TriggerSchedule, s.now.Add(-time.Hour))
	s.Require().NoError(s.runs.Create(s.ctx, crashed))

	_, err := s.scheduler.TriggerPurgeNow(s.ctx, t.ID)
	s.Require().NoError(err)

	list, err := s.scheduler.ListRuns(s.ctx, t.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(runs.StatusCompleted, list[0].Status)
	s.Equal(crashed.ID, list[1].ID)
	s.Equal(runs.StatusInterrupted, list[1].Status)
}

func (s *SchedulerSuite) TestFailingRecordIsRetriedThenEscalatedOnce() {
	t := s.register("acme", retention.TierFree)
	old := s.cutoff(retention.TierFree).Add(-time.Hour)
	s.put(s.tickets, t.ID, "stuck", old)
	s.put(s.tickets, t.ID, "ok", old)
	s.tickets.FailOn("stuck", errors.New("attachment store offline"))

	for i := 0; i < 3; i++ {
		run, err := s.scheduler.TriggerPurgeNow(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(1, run.Failed, "run %d", i+1)
	}
	s.Require().Len(s.sink.received(), 1)
	ev := s.sink.received()[0]
	s.Equal(notify.EventPurgeFailureEscalated, ev.Type)
	s.Equal(t.ID, ev.TenantID)
	s.Equal("stuck", ev.Attributes["record_id"])
	s.Equal("3", ev.Attributes["attempts"])

	fourth, err := s.scheduler.TriggerPurgeNow(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Zero(fourth.Failed)
	s.Equal(1, fourth.Skipped)
	s.Len(s.sink.received(), 1, "escalation is sent once")

	escalated, err := s.scheduler.Escalated(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Require().Len(escalated, 1)
	s.Equal("ticket", escalated[0].RecordType)
	s.Equal(3, escalated[0].Attempts)
	s.True(s.tickets.Has(t.ID, "stuck"))
}

func (s *SchedulerSuite) TestResetRequeuesEscalatedRecord() {
	s.cfg.MaxPurgeAttempts = 1
	sched := s.build(s.executor, s.runs)
	t := s.register("acme", retention.TierFree)
	s.put(s.tickets, t.ID, "stuck", s.cutoff(retention.TierFree).Add(-time.Hour))
	s.tickets.FailOn("stuck", errors.New("attachment store offline"))

	_, err := sched.TriggerPurgeNow(s.ctx, t.ID)
	s.Require().NoError(err)
	skipped, err := sched.TriggerPurgeNow(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(1, skipped.Skipped)

	s.tickets.FailOn("stuck", nil)
	s.Require().NoError(sched.ResetPurgeAttempts(s.ctx, t.ID, "ticket", "stuck"))

	escalated, err := sched.Escalated(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Empty(escalated)
	run, err := sched.TriggerPurgeNow(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(1, run.Succeeded)
	s.False(s.tickets.Has(t.ID, "stuck"))

	events, err := s.trail.List(s.ctx, t.ID, audit.Filter{Action: audit.ActionRecordPurgeReset})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("stuck", events[0].TargetID)
}

func (s *SchedulerSuite) TestResetWithoutFailures() {
	t := s.register("acme", retention.TierFree)

	err := s.scheduler.ResetPurgeAttempts(s.ctx, t.ID, "ticket", "never-failed")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.scheduler.ResetPurgeAttempts(s.ctx, t.ID, "", "x")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SchedulerSuite) TestEscalationWithoutNotification() {
	s.cfg.MaxPurgeAttempts = 1
	s.cfg.NotifyOnFailure = false
	sched := s.build(s.executor, s.runs)
	t := s.register("acme", retention.TierFree)
	s.put(s.tickets, t.ID, "stuck", s.cutoff(retention.TierFree).Add(-time.Hour))
	s.tickets.FailOn("stuck", errors.New("boom"))

	_, err := sched.TriggerPurgeNow(s.ctx, t.ID)

	s.Require().NoError(err)
	s.Empty(s.sink.received())
	escalated, err := sched.Escalated(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(escalated, 1)
}

func (s *SchedulerSuite) TestHeldLeaseSkipsOnlyThatTenant() {
	busy := s.register("busy", retention.TierFree)
	idle := s.register("idle", retention.TierFree)
	old := s.cutoff(retention.TierFree).Add(-time.Hour)
	s.put(s.contacts, busy.ID, "c-1", old)
	s.put(s.contacts, idle.ID, "c-1", old)

	held, err := s.locker.Acquire(s.ctx, LeaseKey(busy.ID), time.Minute)
	s.Require().NoError(err)
	defer func() { _ = held.Release(s.ctx) }()

	s.Require().NoError(s.scheduler.Tick(s.ctx))

	s.True(s.contacts.Has(busy.ID, "c-1"))
	s.False(s.contacts.Has(idle.ID, "c-1"))
	busyRuns, err := s.scheduler.ListRuns(s.ctx, busy.ID, 0)
	s.Require().NoError(err)
	s.Empty(busyRuns)

	_, err = s.scheduler.TriggerPurgeNow(s.ctx, busy.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *SchedulerSuite) TestOneTenantFailureDoesNotBlockOthers() {
	bad := s.register("bad", retention.TierFree)
	good := s.register("good", retention.TierFree)
	old := s.cutoff(retention.TierFree).Add(-time.Hour)

	messages := purgememory.New("message")
	registry, err := purge.NewRegistry(brokenProvider{Provider: messages, tenant: bad.ID}, s.tickets)
	s.Require().NoError(err)
	sched := s.build(purge.NewExecutor(registry, s.trail, s.txRunner, s.logger), s.runs)
	s.put(messages, good.ID, "m-1", old)
	s.put(s.tickets, bad.ID, "t-1", old)
	s.put(s.tickets, good.ID, "t-1", old)

	s.Require().NoError(sched.Tick(s.ctx))

	s.False(messages.Has(good.ID, "m-1"))
	s.False(s.tickets.Has(good.ID, "t-1"))
	s.False(s.tickets.Has(bad.ID, "t-1"), "other providers still run for the failing tenant")
	badRuns, err := sched.ListRuns(s.ctx, bad.ID, 1)
	s.Require().NoError(err)
	s.Require().Len(badRuns, 1)
	s.Equal(runs.StatusCompleted, badRuns[0].Status)
}

func (s *SchedulerSuite) TestSuspendedTenantsAreNotPurged() {
	t := s.register("acme", retention.TierFree)
	s.put(s.contacts, t.ID, "c-1", s.cutoff(retention.TierFree).Add(-time.Hour))
	_, err := s.tenants.Suspend(s.ctx, t.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.scheduler.Tick(s.ctx))
	s.True(s.contacts.Has(t.ID, "c-1"))

	_, err = s.scheduler.TriggerPurgeNow(s.ctx, t.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *SchedulerSuite) TestTriggerUnknownTenant() {
	_, err := s.scheduler.TriggerPurgeNow(s.ctx, id.NewTenantID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *SchedulerSuite) TestTickRecoversStaleRequests() {
	s.cfg.StaleProcessingTTL = 2 * time.Hour
	recoverer := mocks.NewMockStaleRecoverer(s.ctrl)
	recoverer.EXPECT().RecoverStale(gomock.Any(), s.now.Add(-2*time.Hour)).Return(0, errors.New("db down"))
	sched := s.build(s.executor, s.runs, WithRecoverer(recoverer))
	t := s.register("acme", retention.TierFree)
	s.put(s.contacts, t.ID, "c-1", s.cutoff(retention.TierFree).Add(-time.Hour))

	s.Require().NoError(sched.Tick(s.ctx))
	s.False(s.contacts.Has(t.ID, "c-1"), "a recovery failure does not stop the purge")
}

func (s *SchedulerSuite) TestRunStoreFailureReleasesLease() {
	store := mocks.NewMockRunStore(s.ctrl)
	sched := s.build(s.executor, store)
	t := s.register("acme", retention.TierFree)
	s.put(s.contacts, t.ID, "c-1", s.cutoff(retention.TierFree).Add(-time.Hour))

	store.EXPECT().MarkInterrupted(gomock.Any(), t.ID, s.now).Return(0, nil)
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	_, err := sched.TriggerPurgeNow(s.ctx, t.ID)

	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.True(s.contacts.Has(t.ID, "c-1"))
	s.False(s.locker.Held(LeaseKey(t.ID)))
	events, err := s.trail.List(s.ctx, t.ID, audit.Filter{TargetType: audit.TargetPurgeRun})
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *SchedulerSuite) TestTickListFailure() {
	dir := mocks.NewMockTenantDirectory(s.ctrl)
	dir.EXPECT().ListActive(gomock.Any()).Return(nil, errors.New("db down"))
	sched := New(dir, s.resolver, s.executor, s.runs, s.locker, s.trail, s.txRunner, s.sink, s.logger, s.cfg)

	s.Error(sched.Tick(s.ctx))
}
