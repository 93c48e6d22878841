package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	id "dataguard/pkg/domain"
	audit "dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/audit/outbox"
	"dataguard/pkg/platform/tx"
)

const selectColumns = `id, tenant_id, seq, actor, action, target_type, target_id, occurred_at, payload, prev_hash, hash`

// Store implements audit.Store using PostgreSQL. Rows are insert-only; a
// trigger rejects UPDATE and DELETE on audit_events.
type Store struct {
	db     *sql.DB
	runner tx.Runner
	outbox outbox.Store
}

// Option configures a Store.
type Option func(*Store)

// WithOutbox relays every appended event through the outbox in the same
// transaction.
func WithOutbox(o outbox.Store) Option {
	return func(s *Store) {
		s.outbox = o
	}
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB, runner tx.Runner, opts ...Option) *Store {
	s := &Store{db: db, runner: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append links ev to the tenant's chain head and inserts it. A transaction
// scoped advisory lock on the tenant serializes concurrent appends until the
// surrounding transaction ends.
func (s *Store) Append(ctx context.Context, ev *audit.Event) error {
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		exec := tx.ExecutorFor(ctx, s.db)
		tenant := uuid.UUID(ev.TenantID)

		if _, err := exec.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended('audit:' || $1::text, 0))`, tenant); err != nil {
			return fmt.Errorf("lock audit chain: %w", err)
		}

		var (
			headSeq  int64
			headHash string
		)
		err := exec.QueryRowContext(ctx,
			`SELECT seq, hash FROM audit_events WHERE tenant_id = $1 ORDER BY seq DESC LIMIT 1`, tenant,
		).Scan(&headSeq, &headHash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read audit chain head: %w", err)
		}
		audit.Link(ev, headSeq, headHash)

		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO audit_events (`+selectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			uuid.UUID(ev.ID), tenant, ev.Seq, ev.Actor, string(ev.Action),
			ev.TargetType, ev.TargetID, ev.OccurredAt, payload, ev.PrevHash, ev.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}

		if s.outbox == nil {
			return nil
		}
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal audit event: %w", err)
		}
		entry := outbox.NewEntry(audit.TargetTenant, ev.TenantID.String(), string(ev.Action), body, ev.OccurredAt)
		return s.outbox.Append(ctx, entry)
	})
}

// List returns matching events, newest first.
func (s *Store) List(ctx context.Context, tenantID id.TenantID, filter audit.Filter) ([]audit.Event, error) {
	var (
		where = []string{"tenant_id = $1"}
		args  = []any{uuid.UUID(tenantID)}
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.Action != "" {
		add("action = ?", string(filter.Action))
	}
	if filter.TargetType != "" {
		add("target_type = ?", filter.TargetType)
	}
	if filter.TargetID != "" {
		add("target_id = ?", filter.TargetID)
	}
	if !filter.Since.IsZero() {
		add("occurred_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("occurred_at < ?", filter.Until)
	}

	query := `SELECT ` + selectColumns + ` FROM audit_events WHERE ` + strings.Join(where, " AND ") + ` ORDER BY seq DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Scan streams the tenant's events in ascending Seq order.
func (s *Store) Scan(ctx context.Context, tenantID id.TenantID, fn func(audit.Event) error) error {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx,
		`SELECT `+selectColumns+` FROM audit_events WHERE tenant_id = $1 ORDER BY seq ASC`, uuid.UUID(tenantID))
	if err != nil {
		return fmt.Errorf("query audit chain: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate audit chain: %w", err)
	}
	return nil
}

// CountByAction counts the tenant's events per action at or after since.
func (s *Store) CountByAction(ctx context.Context, tenantID id.TenantID, since time.Time) (map[audit.Action]int, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, `
		SELECT action, COUNT(*) FROM audit_events
		WHERE tenant_id = $1 AND occurred_at >= $2
		GROUP BY action`, uuid.UUID(tenantID), since)
	if err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}
	defer rows.Close()

	counts := make(map[audit.Action]int)
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		counts[audit.Action(action)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit counts: %w", err)
	}
	return counts, nil
}

func scanEvent(rows *sql.Rows) (audit.Event, error) {
	var (
		ev       audit.Event
		eventID  uuid.UUID
		tenantID uuid.UUID
		action   string
		payload  []byte
	)
	err := rows.Scan(&eventID, &tenantID, &ev.Seq, &ev.Actor, &action, &ev.TargetType, &ev.TargetID,
		&ev.OccurredAt, &payload, &ev.PrevHash, &ev.Hash)
	if err != nil {
		return audit.Event{}, fmt.Errorf("scan audit event: %w", err)
	}
	ev.ID = id.AuditEventID(eventID)
	ev.TenantID = id.TenantID(tenantID)
	ev.Action = audit.Action(action)
	ev.OccurredAt = ev.OccurredAt.UTC()
	ev.Payload = map[string]string{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return audit.Event{}, fmt.Errorf("decode audit payload: %w", err)
		}
	}
	return ev, nil
}
