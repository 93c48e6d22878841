//go:build integration

package runs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dataguard/internal/purge"
	"dataguard/internal/retention/runs"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	store  *runs.PostgresStore
	tenant id.TenantID
	now    time.Time
	ctx    context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = runs.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.TruncateModuleTables(s.ctx))
	s.tenant = id.NewTenantID()
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) TestRunLifecycleAndLedger() {
	run := runs.NewRun(s.tenant, s.now.AddDate(0, 0, -90), runs.TriggerSchedule, s.now)
	s.Require().NoError(s.store.Create(s.ctx, run))

	ok := purge.RecordRef{Type: "contact", ID: "c-1"}
	bad := purge.RecordRef{Type: "ticket", ID: "t-1"}
	s.Require().NoError(s.store.AppendOutcome(s.ctx, runs.NewOutcome(run, ok, purge.Outcome{Status: purge.StatusSuccess}, s.now)))
	s.Require().NoError(s.store.AppendOutcome(s.ctx, runs.NewOutcome(run, bad, purge.Outcome{Status: purge.StatusFailed, Reason: "timeout"}, s.now.Add(time.Second))))

	run.Count(purge.StatusSuccess)
	run.Count(purge.StatusFailed)
	run.Skipped = 4
	run.Finish(s.now.Add(time.Minute), false)
	s.Require().NoError(s.store.Finish(s.ctx, run))

	list, err := s.store.List(s.ctx, s.tenant, 10)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(runs.StatusCompleted, list[0].Status)
	s.Equal(4, list[0].Skipped)
	s.Equal(run.Cutoff, list[0].Cutoff)
	s.Require().NotNil(list[0].FinishedAt)

	ledger, err := s.store.Ledger(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(ledger.Attempts(ok.Key()))
	s.Equal(1, ledger.Attempts(bad.Key()))
	esc := ledger.Escalated(1)
	s.Require().Len(esc, 1)
	s.Equal("timeout", esc[0].LastReason)
}

func (s *PostgresStoreSuite) TestMarkInterrupted() {
	run := runs.NewRun(s.tenant, s.now, runs.TriggerSchedule, s.now)
	s.Require().NoError(s.store.Create(s.ctx, run))
	s.Require().NoError(s.store.AppendOutcome(s.ctx, runs.NewOutcome(run,
		purge.RecordRef{Type: "contact", ID: "c-1"}, purge.Outcome{Status: purge.StatusNotFound}, s.now)))

	n, err := s.store.MarkInterrupted(s.ctx, s.tenant, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n)

	list, err := s.store.List(s.ctx, s.tenant, 0)
	s.Require().NoError(err)
	s.Equal(runs.StatusInterrupted, list[0].Status)
	s.Equal(1, list[0].NotFound)

	n, err = s.store.MarkInterrupted(s.ctx, s.tenant, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresStoreSuite) TestSettledRecordIgnoresLaterFailures() {
	run := runs.NewRun(s.tenant, s.now, runs.TriggerSchedule, s.now)
	s.Require().NoError(s.store.Create(s.ctx, run))
	ref := purge.RecordRef{Type: "contact", ID: "c-1"}
	history := []purge.Outcome{
		{Status: purge.StatusFailed, Reason: "timeout"},
		{Status: purge.StatusFailed, Reason: "timeout"},
		{Status: purge.StatusSuccess},
		{Status: purge.StatusFailed, Reason: "timeout"},
	}
	for i, out := range history {
		s.Require().NoError(s.store.AppendOutcome(s.ctx, runs.NewOutcome(run, ref, out, s.now.Add(time.Duration(i)*time.Second))))
	}

	ledger, err := s.store.Ledger(s.ctx, s.tenant)

	s.Require().NoError(err)
	s.Zero(ledger.Attempts(ref.Key()))
	s.Empty(ledger.Escalated(1))
	s.ErrorIs(s.store.ResetAttempts(s.ctx, s.tenant, "contact", "c-1"), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestInterruptedAttemptsAreNotCounted() {
	run := runs.NewRun(s.tenant, s.now, runs.TriggerSchedule, s.now)
	s.Require().NoError(s.store.Create(s.ctx, run))
	ref := purge.RecordRef{Type: "ticket", ID: "t-1"}
	history := []purge.Outcome{
		{Status: purge.StatusFailed, Reason: "timeout"},
		{Status: purge.StatusFailed, Reason: purge.ReasonInterrupted},
		{Status: purge.StatusFailed, Reason: "connection reset"},
	}
	for i, out := range history {
		s.Require().NoError(s.store.AppendOutcome(s.ctx, runs.NewOutcome(run, ref, out, s.now.Add(time.Duration(i)*time.Second))))
	}

	ledger, err := s.store.Ledger(s.ctx, s.tenant)

	s.Require().NoError(err)
	esc := ledger.Escalated(2)
	s.Require().Len(esc, 1)
	s.Equal(2, esc[0].Attempts)
	s.Equal("connection reset", esc[0].LastReason)
	s.Equal(s.now.Add(2*time.Second), esc[0].LastAttempt)
}

func (s *PostgresStoreSuite) TestResetAttempts() {
	run := runs.NewRun(s.tenant, s.now, runs.TriggerSchedule, s.now)
	s.Require().NoError(s.store.Create(s.ctx, run))
	ref := purge.RecordRef{Type: "ticket", ID: "t-1"}
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.AppendOutcome(s.ctx, runs.NewOutcome(run, ref,
			purge.Outcome{Status: purge.StatusFailed, Reason: "timeout"}, s.now.Add(time.Duration(i)*time.Second))))
	}

	s.Require().NoError(s.store.ResetAttempts(s.ctx, s.tenant, "ticket", "t-1"))
	s.Require().NoError(s.store.AppendOutcome(s.ctx, runs.NewOutcome(run, ref,
		purge.Outcome{Status: purge.StatusFailed, Reason: "timeout"}, s.now.Add(time.Minute))))

	ledger, err := s.store.Ledger(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, ledger.Attempts(ref.Key()))
	s.ErrorIs(s.store.ResetAttempts(s.ctx, id.NewTenantID(), "ticket", "t-1"), sentinel.ErrNotFound)
}
