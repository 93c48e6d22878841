//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dataguard/internal/purge"
	"dataguard/internal/purge/providers/postgres"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/tx"
	"dataguard/pkg/testutil/containers"
)

type TableProviderSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	contacts *postgres.TableProvider
	tickets  *postgres.TableProvider
	runner   *tx.PostgresRunner
	tenant   id.TenantID
	ctx      context.Context
}

func TestTableProviderSuite(t *testing.T) {
	suite.Run(t, new(TableProviderSuite))
}

func (s *TableProviderSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	tables := postgres.DefaultTables()
	s.contacts = postgres.New(s.pg.DB, tables[0])
	s.tickets = postgres.New(s.pg.DB, tables[1])
	s.runner = tx.NewPostgresRunner(s.pg.DB, 5*time.Second)
}

func (s *TableProviderSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.TruncateModuleTables(s.ctx))
	s.tenant = s.pg.CreateTestTenant(s.ctx, s.T(), "FREE")
}

func (s *TableProviderSuite) count(query string, args ...any) int {
	var n int
	s.Require().NoError(s.pg.QueryRow(s.ctx, query, args...).Scan(&n))
	return n
}

func (s *TableProviderSuite) TestListStaleBoundary() {
	cutoff := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	stale := s.pg.InsertContact(s.ctx, s.T(), s.tenant, "s-1", cutoff.Add(-time.Second))
	s.pg.InsertContact(s.ctx, s.T(), s.tenant, "s-2", cutoff)

	refs, err := s.contacts.ListStale(s.ctx, s.tenant, cutoff)

	s.Require().NoError(err)
	s.Require().Len(refs, 1)
	s.Equal(stale, refs[0].ID)
	s.Equal("s-1", refs[0].Subject)
}

func (s *TableProviderSuite) TestTicketDeleteRemovesChildrenFirst() {
	ticketID := s.pg.InsertTicket(s.ctx, s.T(), s.tenant, "s-1", time.Now().AddDate(-1, 0, 0))
	ref := purge.RecordRef{TenantID: s.tenant, Type: "ticket", ID: ticketID}

	found, err := s.tickets.DeleteOrRedact(s.ctx, ref)

	s.Require().NoError(err)
	s.True(found)
	s.Zero(s.count(`SELECT COUNT(*) FROM tickets WHERE id = $1`, ticketID))
	s.Zero(s.count(`SELECT COUNT(*) FROM ticket_attachments WHERE ticket_id = $1`, ticketID))
	s.Equal(1, s.count(`SELECT COUNT(*) FROM messages WHERE subject_id = 's-1' AND ticket_id IS NULL`))

	found, err = s.tickets.DeleteOrRedact(s.ctx, ref)
	s.Require().NoError(err)
	s.False(found)
}

func (s *TableProviderSuite) TestContactRedactionIsIdempotent() {
	contactID := s.pg.InsertContact(s.ctx, s.T(), s.tenant, "a@b.com", time.Now().AddDate(-1, 0, 0))
	ref := purge.RecordRef{TenantID: s.tenant, Type: "contact", ID: contactID}

	found, err := s.contacts.DeleteOrRedact(s.ctx, ref)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(1, s.count(`SELECT COUNT(*) FROM contacts WHERE id = $1 AND email IS NULL AND redacted_at IS NOT NULL`, contactID))
	s.Zero(s.count(`SELECT COUNT(*) FROM contacts WHERE subject_id = 'a@b.com'`))
	s.Equal(1, s.count(`SELECT COUNT(*) FROM contacts WHERE subject_id = $1`, postgres.RedactedSubject(contactID)))

	found, err = s.contacts.DeleteOrRedact(s.ctx, ref)
	s.Require().NoError(err)
	s.False(found)

	refs, err := s.contacts.ListStale(s.ctx, s.tenant, time.Now())
	s.Require().NoError(err)
	s.Empty(refs)
}

func (s *TableProviderSuite) TestErasedSubjectIsNotFoundAgain() {
	contactID := s.pg.InsertContact(s.ctx, s.T(), s.tenant, "a@b.com", time.Now())
	_, err := s.contacts.DeleteOrRedact(s.ctx, purge.RecordRef{TenantID: s.tenant, Type: "contact", ID: contactID})
	s.Require().NoError(err)

	exported, err := s.contacts.ExportSubject(s.ctx, s.tenant, "a@b.com")
	s.Require().NoError(err)
	s.Empty(exported)

	refs, err := s.contacts.ListBySubject(s.ctx, s.tenant, "a@b.com")
	s.Require().NoError(err)
	s.Empty(refs)
}

func (s *TableProviderSuite) TestRollbackKeepsRows() {
	ticketID := s.pg.InsertTicket(s.ctx, s.T(), s.tenant, "s-1", time.Now().AddDate(-1, 0, 0))

	err := s.runner.RunInTx(s.ctx, func(ctx context.Context) error {
		found, err := s.tickets.DeleteOrRedact(ctx, purge.RecordRef{TenantID: s.tenant, Type: "ticket", ID: ticketID})
		s.Require().NoError(err)
		s.True(found)
		return errors.New("audit append failed")
	})

	s.Require().Error(err)
	s.Equal(1, s.count(`SELECT COUNT(*) FROM tickets WHERE id = $1`, ticketID))
	s.Equal(1, s.count(`SELECT COUNT(*) FROM ticket_attachments WHERE ticket_id = $1`, ticketID))
}

func (s *TableProviderSuite) TestOtherTenantsRowsAreUntouched() {
	other := s.pg.CreateTestTenant(s.ctx, s.T(), "PRO")
	ticketID := s.pg.InsertTicket(s.ctx, s.T(), other, "s-1", time.Now().AddDate(-1, 0, 0))

	found, err := s.tickets.DeleteOrRedact(s.ctx, purge.RecordRef{TenantID: s.tenant, Type: "ticket", ID: ticketID})

	s.Require().NoError(err)
	s.False(found)
	s.Equal(1, s.count(`SELECT COUNT(*) FROM ticket_attachments WHERE ticket_id = $1`, ticketID))
}

func (s *TableProviderSuite) TestExportSubject() {
	s.pg.InsertContact(s.ctx, s.T(), s.tenant, "a@b.com", time.Now())

	out, err := s.contacts.ExportSubject(s.ctx, s.tenant, "a@b.com")

	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("a@b.com", out[0].Fields["email"])
	s.Equal("Test Contact", out[0].Fields["name"])
}
