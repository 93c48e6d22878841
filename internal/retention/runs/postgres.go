package runs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dataguard/internal/purge"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
)

const runColumns = `id, tenant_id, cutoff, trigger, status, started_at, finished_at,
	succeeded, not_found, failed, skipped`

// PostgresStore persists runs in purge_runs and outcomes in purge_outcomes.
// Outcomes are insert-only; purge_ledger holds their fold per record.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, run *Run) error {
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO purge_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(run.ID), uuid.UUID(run.TenantID), run.Cutoff, string(run.Trigger), string(run.Status),
		run.StartedAt, run.FinishedAt, run.Succeeded, run.NotFound, run.Failed, run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("insert purge run: %w", err)
	}
	return nil
}

// AppendOutcome records the outcome and folds it into purge_ledger in the
// same statement. A settled record stays settled and keeps zero attempts.
func (s *PostgresStore) AppendOutcome(ctx context.Context, o Outcome) error {
	settled := o.Status != purge.StatusFailed
	counted := !settled && !strings.HasPrefix(o.Reason, purge.ReasonInterrupted)
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		WITH outcome AS (
			INSERT INTO purge_outcomes (run_id, tenant_id, record_type, record_id, outcome, reason, attempted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		)
		INSERT INTO purge_ledger AS l (tenant_id, record_type, record_id, settled, attempts, last_reason, last_attempt_at)
		VALUES ($2, $3, $4, $8, CASE WHEN $9 THEN 1 ELSE 0 END,
			CASE WHEN $9 THEN $6 ELSE '' END, CASE WHEN $9 THEN $7::timestamptz END)
		ON CONFLICT (tenant_id, record_type, record_id) DO UPDATE SET
			settled = l.settled OR EXCLUDED.settled,
			attempts = CASE
				WHEN l.settled OR EXCLUDED.settled THEN 0
				WHEN $9 THEN l.attempts + 1
				ELSE l.attempts END,
			last_reason = CASE
				WHEN l.settled OR EXCLUDED.settled THEN ''
				WHEN $9 THEN EXCLUDED.last_reason
				ELSE l.last_reason END,
			last_attempt_at = CASE
				WHEN l.settled OR EXCLUDED.settled THEN l.last_attempt_at
				WHEN $9 THEN EXCLUDED.last_attempt_at
				ELSE l.last_attempt_at END`,
		uuid.UUID(o.RunID), uuid.UUID(o.TenantID), o.RecordType, o.RecordID, string(o.Status), o.Reason, o.AttemptedAt,
		settled, counted,
	)
	if err != nil {
		return fmt.Errorf("insert purge outcome: %w", err)
	}
	return nil
}

func (s *PostgresStore) Finish(ctx context.Context, run *Run) error {
	res, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE purge_runs
		SET status = $2, finished_at = $3, succeeded = $4, not_found = $5, failed = $6, skipped = $7
		WHERE id = $1`,
		uuid.UUID(run.ID), string(run.Status), run.FinishedAt, run.Succeeded, run.NotFound, run.Failed, run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("finish purge run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish purge run: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Ledger loads the unsettled records with counted failures. Settled records
// are not loaded, so Settled reports false for them; the providers no longer
// list a record once it is deleted or redacted.
func (s *PostgresStore) Ledger(ctx context.Context, tenantID id.TenantID) (*Ledger, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, `
		SELECT record_type, record_id, attempts, last_reason, last_attempt_at
		FROM purge_ledger
		WHERE tenant_id = $1 AND NOT settled AND attempts > 0`, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("query purge ledger: %w", err)
	}
	defer rows.Close()

	ledger := NewLedger()
	for rows.Next() {
		var (
			f    Failure
			last sql.NullTime
		)
		if err := rows.Scan(&f.RecordType, &f.RecordID, &f.Attempts, &f.LastReason, &last); err != nil {
			return nil, fmt.Errorf("scan purge ledger: %w", err)
		}
		if last.Valid {
			f.LastAttempt = last.Time.UTC()
		}
		ledger.failures[Key(f.RecordType, f.RecordID)] = &f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purge ledger: %w", err)
	}
	return ledger, nil
}

// ResetAttempts clears the failed attempts of an unsettled record. It
// returns sentinel.ErrNotFound when the record has none.
func (s *PostgresStore) ResetAttempts(ctx context.Context, tenantID id.TenantID, recordType, recordID string) error {
	res, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE purge_ledger SET attempts = 0, last_reason = ''
		WHERE tenant_id = $1 AND record_type = $2 AND record_id = $3 AND NOT settled AND attempts > 0`,
		uuid.UUID(tenantID), recordType, recordID)
	if err != nil {
		return fmt.Errorf("reset purge attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset purge attempts: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM purge_runs WHERE tenant_id = $1 ORDER BY started_at DESC, id`
	args := []any{uuid.UUID(tenantID)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query purge runs: %w", err)
	}
	defer rows.Close()

	out := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purge runs: %w", err)
	}
	return out, nil
}

// MarkInterrupted closes RUNNING runs and recounts their totals from the
// outcomes they managed to write.
func (s *PostgresStore) MarkInterrupted(ctx context.Context, tenantID id.TenantID, now time.Time) (int, error) {
	res, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE purge_runs r SET
			status = 'INTERRUPTED',
			finished_at = $2,
			succeeded = (SELECT COUNT(*) FROM purge_outcomes o WHERE o.run_id = r.id AND o.outcome = 'SUCCESS'),
			not_found = (SELECT COUNT(*) FROM purge_outcomes o WHERE o.run_id = r.id AND o.outcome = 'NOT_FOUND'),
			failed = (SELECT COUNT(*) FROM purge_outcomes o WHERE o.run_id = r.id AND o.outcome = 'FAILED')
		WHERE r.tenant_id = $1 AND r.status = 'RUNNING'`, uuid.UUID(tenantID), now)
	if err != nil {
		return 0, fmt.Errorf("interrupt purge runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("interrupt purge runs: %w", err)
	}
	return int(n), nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run      Run
		runID    uuid.UUID
		tenantID uuid.UUID
		trigger  string
		status   string
		finished sql.NullTime
	)
	err := rows.Scan(&runID, &tenantID, &run.Cutoff, &trigger, &status, &run.StartedAt, &finished,
		&run.Succeeded, &run.NotFound, &run.Failed, &run.Skipped)
	if err != nil {
		return nil, fmt.Errorf("scan purge run: %w", err)
	}
	run.ID = id.PurgeRunID(runID)
	run.TenantID = id.TenantID(tenantID)
	run.Trigger = Trigger(trigger)
	run.Status = Status(status)
	run.Cutoff = run.Cutoff.UTC()
	run.StartedAt = run.StartedAt.UTC()
	if finished.Valid {
		t := finished.Time.UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}
