package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dataguard/internal/platform/database"
	"dataguard/internal/retention"
	"dataguard/internal/tenant/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

const tenantColumns = `id, name, plan_tier, status, created_at`

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfNameAvailable relies on the unique index over lower(name).
func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, t *models.Tenant) error {
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(t.ID), t.Name, string(t.Tier), string(t.Status), t.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *models.Tenant) error {
	res, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE tenants SET name = $2, plan_tier = $3, status = $4 WHERE id = $1`,
		uuid.UUID(t.ID), t.Name, string(t.Tier), string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	row := tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, uuid.UUID(tenantID))
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by id: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Tenant, error) {
	return s.query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at, id`)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	return s.query(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE status = 'active' ORDER BY created_at, id`)
}

func (s *PostgresStore) query(ctx context.Context, query string) ([]*models.Tenant, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return out, nil
}

type tenantRow interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantRow) (*models.Tenant, error) {
	var (
		t        models.Tenant
		tenantID uuid.UUID
		tier     string
		status   string
	)
	if err := row.Scan(&tenantID, &t.Name, &tier, &status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TenantID(tenantID)
	t.Tier = retention.Tier(tier)
	t.Status = models.Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
