package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dataguard/internal/consent/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

const consentColumns = `id, tenant_id, subject, purpose, granted, source, recorded_at, expires_at`

// PostgresStore persists the consent ledger. It only ever issues INSERT and
// SELECT; a trigger rejects UPDATE and DELETE on consent_records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, rec *models.Record) error {
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO consent_records (`+consentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(rec.ID), uuid.UUID(rec.TenantID), rec.Subject, string(rec.Purpose),
		rec.Granted, string(rec.Source), rec.RecordedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, tenantID id.TenantID, subject string, purpose models.Purpose) (*models.Record, error) {
	row := tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+consentColumns+` FROM consent_records
		WHERE tenant_id = $1 AND subject = $2 AND purpose = $3
		ORDER BY recorded_at DESC, seq DESC
		LIMIT 1`,
		uuid.UUID(tenantID), subject, string(purpose),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest consent: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, tenantID id.TenantID, subject string) ([]*models.Record, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, `
		SELECT `+consentColumns+` FROM consent_records
		WHERE tenant_id = $1 AND subject = $2
		ORDER BY recorded_at DESC, seq DESC`,
		uuid.UUID(tenantID), subject,
	)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	records := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec      models.Record
		recID    uuid.UUID
		tenantID uuid.UUID
		purpose  string
		source   string
	)
	if err := row.Scan(&recID, &tenantID, &rec.Subject, &purpose, &rec.Granted, &source, &rec.RecordedAt, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	rec.ID = id.ConsentID(recID)
	rec.TenantID = id.TenantID(tenantID)
	rec.Purpose = models.Purpose(purpose)
	rec.Source = models.Source(source)
	rec.RecordedAt = rec.RecordedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}
