package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dataguard/internal/dsr/models"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

const requestColumns = `id, tenant_id, requester_contact, subject_id, kind, reason, status, reviewer,
	failure_reason, result, created_at, decided_at, processing_started_at, completed_at, version`

// PostgresStore persists data-subject requests.
type PostgresStore struct {
	db     *sql.DB
	runner tx.Runner
}

func NewPostgres(db *sql.DB, runner tx.Runner) *PostgresStore {
	return &PostgresStore{db: db, runner: runner}
}

// CreateWithinLimit counts the tenant's open requests and inserts req under a
// transaction-scoped advisory lock on the tenant, so concurrent submissions
// cannot both squeeze under the cap.
func (s *PostgresStore) CreateWithinLimit(ctx context.Context, req *models.Request, maxPending int) error {
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		exec := tx.ExecutorFor(ctx, s.db)
		tenant := uuid.UUID(req.TenantID)

		if _, err := exec.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended('dsr:' || $1::text, 0))`, tenant); err != nil {
			return fmt.Errorf("lock tenant requests: %w", err)
		}
		var open int
		if err := exec.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM dsr_requests
			WHERE tenant_id = $1 AND status NOT IN ('COMPLETED', 'REJECTED')`, tenant,
		).Scan(&open); err != nil {
			return fmt.Errorf("count open requests: %w", err)
		}
		if open >= maxPending {
			return sentinel.ErrLimitExceeded
		}

		result, err := marshalResult(req.Result)
		if err != nil {
			return err
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO dsr_requests (`+requestColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			uuid.UUID(req.ID), tenant, req.RequesterContact, req.SubjectID, string(req.Kind), req.Reason,
			string(req.Status), req.Reviewer, req.FailureReason, result, req.CreatedAt,
			req.DecidedAt, req.ProcessingStartedAt, req.CompletedAt, req.Version,
		)
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return nil
	})
}

// Update writes req if the stored version still equals req.Version and bumps it.
func (s *PostgresStore) Update(ctx context.Context, req *models.Request) error {
	result, err := marshalResult(req.Result)
	if err != nil {
		return err
	}
	exec := tx.ExecutorFor(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE dsr_requests SET
			status = $1, reviewer = $2, failure_reason = $3, result = $4,
			decided_at = $5, processing_started_at = $6, completed_at = $7,
			version = version + 1
		WHERE id = $8 AND tenant_id = $9 AND version = $10`,
		string(req.Status), req.Reviewer, req.FailureReason, result,
		req.DecidedAt, req.ProcessingStartedAt, req.CompletedAt,
		uuid.UUID(req.ID), uuid.UUID(req.TenantID), req.Version,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := exec.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM dsr_requests WHERE id = $1 AND tenant_id = $2)`,
			uuid.UUID(req.ID), uuid.UUID(req.TenantID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check request: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	req.Version++
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, reqID id.DSRID) (*models.Request, error) {
	row := tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM dsr_requests WHERE id = $1 AND tenant_id = $2`,
		uuid.UUID(reqID), uuid.UUID(tenantID))
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, status models.Status) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM dsr_requests WHERE tenant_id = $1`
	args := []any{uuid.UUID(tenantID)}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	return s.query(ctx, query+` ORDER BY created_at DESC, id`, args...)
}

func (s *PostgresStore) ListProcessingBefore(ctx context.Context, cutoff time.Time) ([]*models.Request, error) {
	return s.query(ctx, `
		SELECT `+requestColumns+` FROM dsr_requests
		WHERE status = 'PROCESSING' AND processing_started_at < $1
		ORDER BY processing_started_at`, cutoff)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.Request, error) {
	var (
		req                               models.Request
		reqID, tenantID                   uuid.UUID
		kind, status                      string
		result                            []byte
		decidedAt, startedAt, completedAt sql.NullTime
	)
	err := row.Scan(&reqID, &tenantID, &req.RequesterContact, &req.SubjectID, &kind, &req.Reason,
		&status, &req.Reviewer, &req.FailureReason, &result, &req.CreatedAt,
		&decidedAt, &startedAt, &completedAt, &req.Version)
	if err != nil {
		return nil, err
	}
	req.ID = id.DSRID(reqID)
	req.TenantID = id.TenantID(tenantID)
	req.Kind = models.Kind(kind)
	req.Status = models.Status(status)
	req.CreatedAt = req.CreatedAt.UTC()
	req.DecidedAt = nullTime(decidedAt)
	req.ProcessingStartedAt = nullTime(startedAt)
	req.CompletedAt = nullTime(completedAt)
	if len(result) > 0 {
		req.Result = &models.Result{}
		if err := json.Unmarshal(result, req.Result); err != nil {
			return nil, fmt.Errorf("decode request result: %w", err)
		}
	}
	return &req, nil
}

func marshalResult(r *models.Result) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode request result: %w", err)
	}
	return b, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
