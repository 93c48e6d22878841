//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dataguard/internal/platform/database"
	"dataguard/migrations"
	id "dataguard/pkg/domain"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container with migrations applied.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("dataguard_test"),
		postgres.WithUsername("dataguard"),
		postgres.WithPassword("dataguard_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}

	if err := pc.runMigrations(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Note: We don't register t.Cleanup here because the container is managed
	// by the singleton Manager and shared across test suites. Ryuk (testcontainers'
	// cleanup sidecar) handles container cleanup when the test process exits.

	return pc
}

// runMigrations executes all *.up.sql migrations from the embedded migrations.FS.
func (p *PostgresContainer) runMigrations(ctx context.Context) error {
	_, err := database.Migrate(ctx, p.DB, migrations.FS)
	return err
}

// TruncateTables clears all data from the specified tables.
// Use between tests to ensure isolation without restarting the container.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateAll truncates the audit tables.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx, "outbox", "audit_events")
}

// TruncateModuleTables truncates every table the engine reads or writes.
func (p *PostgresContainer) TruncateModuleTables(ctx context.Context) error {
	tables := []string{
		"outbox",
		"audit_events",
		"consent_records",
		"dsr_requests",
		"purge_ledger",
		"purge_outcomes",
		"purge_runs",
		"ticket_attachments",
		"messages",
		"tickets",
		"contacts",
		"tenants",
	}
	return p.TruncateTables(ctx, tables...)
}

// Exec runs a SQL statement and returns the result.
func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

// QueryRow runs a SQL query expected to return a single row.
func (p *PostgresContainer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}

// CreateTestTenant inserts an active tenant on planTier and returns its ID.
func (p *PostgresContainer) CreateTestTenant(ctx context.Context, t testing.TB, planTier string) id.TenantID {
	t.Helper()
	tenantID := id.NewTenantID()
	_, err := p.Exec(ctx, `
		INSERT INTO tenants (id, name, plan_tier, status, created_at)
		VALUES ($1, $2, $3, 'active', NOW())
	`, uuid.UUID(tenantID), "Test Tenant "+uuid.NewString(), planTier)
	if err != nil {
		t.Fatalf("CreateTestTenant: %v", err)
	}
	return tenantID
}

// InsertContact seeds a contact row and returns its ID.
func (p *PostgresContainer) InsertContact(ctx context.Context, t testing.TB, tenantID id.TenantID, subject string, lastActivity time.Time) string {
	t.Helper()
	contactID := uuid.New()
	_, err := p.Exec(ctx, `
		INSERT INTO contacts (id, tenant_id, subject_id, name, email, phone, document_id, last_activity_at)
		VALUES ($1, $2, $3, 'Test Contact', $3, '+55 11 91234-5678', '123.456.789-09', $4)
	`, contactID, uuid.UUID(tenantID), subject, lastActivity)
	if err != nil {
		t.Fatalf("InsertContact: %v", err)
	}
	return contactID.String()
}

// InsertTicket seeds a ticket with one attachment and one message and returns
// the ticket ID.
func (p *PostgresContainer) InsertTicket(ctx context.Context, t testing.TB, tenantID id.TenantID, subject string, lastActivity time.Time) string {
	t.Helper()
	ticketID := uuid.New()
	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO tickets (id, tenant_id, subject_id, title, description, last_activity_at)
		  VALUES ($1, $2, $3, 'Order missing', 'Please call me back', $4)`,
			[]any{ticketID, uuid.UUID(tenantID), subject, lastActivity}},
		{`INSERT INTO ticket_attachments (id, ticket_id, file_name, storage_key) VALUES ($1, $2, 'invoice.pdf', 'k/1')`,
			[]any{uuid.New(), ticketID}},
		{`INSERT INTO messages (id, tenant_id, ticket_id, subject_id, body, last_activity_at)
		  VALUES ($1, $2, $3, $4, 'hello', $5)`,
			[]any{uuid.New(), uuid.UUID(tenantID), ticketID, subject, lastActivity}},
	}
	for _, st := range stmts {
		if _, err := p.Exec(ctx, st.query, st.args...); err != nil {
			t.Fatalf("InsertTicket: %v", err)
		}
	}
	return ticketID.String()
}
