// Package postgres purges rows from the customer-service tables in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dataguard/internal/purge"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/tx"
)

// Child is a table whose rows reference the parent by ForeignKey. Child rows are
// handled before the parent row, in the same transaction.
type Child struct {
	Table      string
	ForeignKey string
	// Detach nulls ForeignKey instead of deleting the child row. Use it for
	// children that are purged on their own schedule.
	Detach bool
}

// Table describes one purgeable table. A table with RedactColumns is redacted in
// place: those columns are set to NULL, the subject column is replaced by
// RedactedSubject and redacted_at is stamped. Otherwise the row is deleted.
type Table struct {
	RecordType     string
	Name           string
	SubjectColumn  string
	ActivityColumn string
	RedactColumns  []string
	ExportColumns  []string
	Children       []Child
}

// DefaultTables covers the contact, ticket and chat message tables.
func DefaultTables() []Table {
	return []Table{
		{
			RecordType:    "contact",
			Name:          "contacts",
			RedactColumns: []string{"name", "email", "phone", "document_id"},
			ExportColumns: []string{"name", "email", "phone", "document_id"},
		},
		{
			RecordType:    "ticket",
			Name:          "tickets",
			ExportColumns: []string{"title", "description"},
			Children: []Child{
				{Table: "ticket_attachments", ForeignKey: "ticket_id"},
				{Table: "messages", ForeignKey: "ticket_id", Detach: true},
			},
		},
		{
			RecordType:    "message",
			Name:          "messages",
			RedactColumns: []string{"body"},
			ExportColumns: []string{"body"},
		},
	}
}

// TableProvider implements purge.Provider for a single table.
type TableProvider struct {
	db    *sql.DB
	table Table
}

var (
	_ purge.Provider        = (*TableProvider)(nil)
	_ purge.SubjectExporter = (*TableProvider)(nil)
)

// New builds a provider for t, filling the conventional column names.
func New(db *sql.DB, t Table) *TableProvider {
	if t.SubjectColumn == "" {
		t.SubjectColumn = "subject_id"
	}
	if t.ActivityColumn == "" {
		t.ActivityColumn = "last_activity_at"
	}
	return &TableProvider{db: db, table: t}
}

// NewProviders builds one provider per table.
func NewProviders(db *sql.DB, tables ...Table) []purge.Provider {
	out := make([]purge.Provider, 0, len(tables))
	for _, t := range tables {
		out = append(out, New(db, t))
	}
	return out
}

func (p *TableProvider) RecordType() string { return p.table.RecordType }

func (p *TableProvider) redacts() bool { return len(p.table.RedactColumns) > 0 }

// RedactedSubject is the subject a redacted row is left with. It names the row,
// never the person.
func RedactedSubject(recordID string) string {
	return "redacted:" + recordID
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (p *TableProvider) ListStale(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]purge.RecordRef, error) {
	query := fmt.Sprintf(`SELECT id::text, %s, %s FROM %s WHERE tenant_id = $1 AND %s < $2`,
		ident(p.table.SubjectColumn), ident(p.table.ActivityColumn), ident(p.table.Name), ident(p.table.ActivityColumn))
	if p.redacts() {
		query += ` AND redacted_at IS NULL`
	}
	query += fmt.Sprintf(` ORDER BY %s, id`, ident(p.table.ActivityColumn))
	return p.queryRefs(ctx, tenantID, query, uuid.UUID(tenantID), cutoff)
}

func (p *TableProvider) ListBySubject(ctx context.Context, tenantID id.TenantID, subject string) ([]purge.RecordRef, error) {
	query := fmt.Sprintf(`SELECT id::text, %s, %s FROM %s WHERE tenant_id = $1 AND %s = $2`,
		ident(p.table.SubjectColumn), ident(p.table.ActivityColumn), ident(p.table.Name), ident(p.table.SubjectColumn))
	if p.redacts() {
		query += ` AND redacted_at IS NULL`
	}
	query += ` ORDER BY id`
	return p.queryRefs(ctx, tenantID, query, uuid.UUID(tenantID), subject)
}

func (p *TableProvider) queryRefs(ctx context.Context, tenantID id.TenantID, query string, args ...any) ([]purge.RecordRef, error) {
	rows, err := tx.ExecutorFor(ctx, p.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.table.Name, err)
	}
	defer rows.Close()

	var refs []purge.RecordRef
	for rows.Next() {
		ref := purge.RecordRef{TenantID: tenantID, Type: p.table.RecordType}
		if err := rows.Scan(&ref.ID, &ref.Subject, &ref.LastActivity); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.table.Name, err)
		}
		ref.LastActivity = ref.LastActivity.UTC()
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", p.table.Name, err)
	}
	return refs, nil
}

// DeleteOrRedact handles the children first and then the row itself. A row of
// another tenant, a malformed id or an already redacted row reports not found.
func (p *TableProvider) DeleteOrRedact(ctx context.Context, ref purge.RecordRef) (bool, error) {
	recordID, err := uuid.Parse(ref.ID)
	if err != nil {
		return false, nil
	}
	tenant := uuid.UUID(ref.TenantID)
	exec := tx.ExecutorFor(ctx, p.db)

	owned := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 AND tenant_id = $2`, ident(p.table.Name))
	for _, c := range p.table.Children {
		var stmt string
		if c.Detach {
			stmt = fmt.Sprintf(`UPDATE %s SET %s = NULL WHERE %s IN (%s)`,
				ident(c.Table), ident(c.ForeignKey), ident(c.ForeignKey), owned)
		} else {
			stmt = fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, ident(c.Table), ident(c.ForeignKey), owned)
		}
		if _, err := exec.ExecContext(ctx, stmt, recordID, tenant); err != nil {
			return false, fmt.Errorf("purge %s of %s: %w", c.Table, p.table.Name, err)
		}
	}

	var res sql.Result
	if p.redacts() {
		sets := make([]string, 0, len(p.table.RedactColumns)+2)
		for _, col := range p.table.RedactColumns {
			sets = append(sets, ident(col)+" = NULL")
		}
		sets = append(sets, ident(p.table.SubjectColumn)+" = $4", "redacted_at = $3")
		stmt := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 AND tenant_id = $2 AND redacted_at IS NULL`,
			ident(p.table.Name), strings.Join(sets, ", "))
		res, err = exec.ExecContext(ctx, stmt, recordID, tenant, time.Now().UTC(), RedactedSubject(recordID.String()))
	} else {
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND tenant_id = $2`, ident(p.table.Name))
		res, err = exec.ExecContext(ctx, stmt, recordID, tenant)
	}
	if err != nil {
		return false, fmt.Errorf("purge %s: %w", p.table.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("purge %s: %w", p.table.Name, err)
	}
	return n > 0, nil
}

func (p *TableProvider) ExportSubject(ctx context.Context, tenantID id.TenantID, subject string) ([]purge.ExportedRecord, error) {
	cols := make([]string, 0, len(p.table.ExportColumns))
	for _, c := range p.table.ExportColumns {
		cols = append(cols, ident(c))
	}
	selectList := "id::text, " + ident(p.table.ActivityColumn)
	if len(cols) > 0 {
		selectList += ", " + strings.Join(cols, ", ")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND %s = $2`,
		selectList, ident(p.table.Name), ident(p.table.SubjectColumn))
	if p.redacts() {
		query += ` AND redacted_at IS NULL`
	}
	query += ` ORDER BY id`

	rows, err := tx.ExecutorFor(ctx, p.db).QueryContext(ctx, query, uuid.UUID(tenantID), subject)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", p.table.Name, err)
	}
	defer rows.Close()

	var out []purge.ExportedRecord
	for rows.Next() {
		rec := purge.ExportedRecord{Type: p.table.RecordType, Fields: make(map[string]string, len(cols))}
		values := make([]sql.NullString, len(cols))
		dest := []any{&rec.ID, &rec.LastActivity}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s export: %w", p.table.Name, err)
		}
		rec.LastActivity = rec.LastActivity.UTC()
		for i, v := range values {
			if v.Valid {
				rec.Fields[p.table.ExportColumns[i]] = v.String
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s export: %w", p.table.Name, err)
	}
	return out, nil
}

