//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dataguard/internal/dsr/models"
	"dataguard/internal/dsr/store"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
	"dataguard/pkg/testutil"
	"dataguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	store  *store.PostgresStore
	tenant id.TenantID
	ctx    context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.pg.DB, tx.NewPostgresRunner(s.pg.DB, 5*time.Second))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.TruncateModuleTables(s.ctx))
	s.tenant = id.NewTenantID()
}

func (s *PostgresStoreSuite) newRequest(contact string) *models.Request {
	req, err := models.NewRequest(s.tenant, models.KindErasure, contact, "", "", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return req
}

func (s *PostgresStoreSuite) TestConcurrentCreatesRespectCap() {
	result := testutil.RunConcurrent(12, func(i int) error {
		return s.store.CreateWithinLimit(s.ctx, s.newRequest(fmt.Sprintf("c-%d@x.io", i)), 5)
	})

	s.Equal(int32(5), result.Successes)
	s.Equal(int32(7), result.Rejected)
	open, err := s.store.List(s.ctx, s.tenant, "")
	s.Require().NoError(err)
	s.Len(open, 5)
}

func (s *PostgresStoreSuite) TestTerminalRequestsFreeCapacity() {
	req := s.newRequest("a@b.com")
	s.Require().NoError(s.store.CreateWithinLimit(s.ctx, req, 1))
	s.ErrorIs(s.store.CreateWithinLimit(s.ctx, s.newRequest("b@b.com"), 1), sentinel.ErrLimitExceeded)

	now := time.Now().UTC()
	s.Require().NoError(req.Apply(models.EventReview, now))
	s.Require().NoError(req.Apply(models.EventReject, now))
	s.Require().NoError(s.store.Update(s.ctx, req))

	s.NoError(s.store.CreateWithinLimit(s.ctx, s.newRequest("b@b.com"), 1))
}

func (s *PostgresStoreSuite) TestUpdateChecksVersion() {
	req := s.newRequest("a@b.com")
	s.Require().NoError(s.store.CreateWithinLimit(s.ctx, req, 10))

	stale, err := s.store.FindByID(s.ctx, s.tenant, req.ID)
	s.Require().NoError(err)

	s.Require().NoError(req.Apply(models.EventReview, time.Now().UTC()))
	s.Require().NoError(s.store.Update(s.ctx, req))
	s.Equal(2, req.Version)

	s.Require().NoError(stale.Apply(models.EventReview, time.Now().UTC()))
	err = s.store.Update(s.ctx, stale)
	s.True(errors.Is(err, sentinel.ErrConflict))

	ghost := s.newRequest("ghost@b.com")
	s.True(errors.Is(s.store.Update(s.ctx, ghost), sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestResultRoundTrip() {
	req := s.newRequest("a@b.com")
	s.Require().NoError(s.store.CreateWithinLimit(s.ctx, req, 10))
	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, ev := range []models.Event{models.EventReview, models.EventApprove, models.EventStart, models.EventFail} {
		s.Require().NoError(req.Apply(ev, now))
	}
	req.FailureReason = "1 record(s) could not be purged"
	req.Result = &models.Result{Purge: &models.PurgeSummary{
		Succeeded: 2, Failed: 1,
		Failures: []models.PurgeFailEntry{{RecordType: "ticket", RecordID: "t-1", Reason: "lock timeout"}},
	}}
	s.Require().NoError(s.store.Update(s.ctx, req))

	got, err := s.store.FindByID(s.ctx, s.tenant, req.ID)

	s.Require().NoError(err)
	s.Equal(models.StatusFailed, got.Status)
	s.Require().NotNil(got.Result)
	s.Equal(req.Result.Purge, got.Result.Purge)
	s.Require().NotNil(got.ProcessingStartedAt)
	s.True(now.Equal(*got.ProcessingStartedAt))
}

func (s *PostgresStoreSuite) TestListProcessingBefore() {
	req := s.newRequest("a@b.com")
	s.Require().NoError(s.store.CreateWithinLimit(s.ctx, req, 10))
	started := time.Now().UTC().Add(-2 * time.Hour)
	s.Require().NoError(req.Apply(models.EventReview, started))
	s.Require().NoError(req.Apply(models.EventApprove, started))
	s.Require().NoError(req.Apply(models.EventStart, started))
	s.Require().NoError(s.store.Update(s.ctx, req))

	stale, err := s.store.ListProcessingBefore(s.ctx, time.Now().Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(stale, 1)
	s.Equal(req.ID, stale[0].ID)

	none, err := s.store.ListProcessingBefore(s.ctx, started)
	s.Require().NoError(err)
	s.Empty(none)
}
