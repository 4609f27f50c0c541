// Package sqlite provides a SQLite-backed store driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
)

// schema is applied on open. The unique composite index is the upsert key;
// tenant-scoped records store an empty caller_id so one index covers both
// scopes.
const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id   TEXT NOT NULL,
	caller_id   TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT NOT NULL,
	scope       TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	expires_at  TIMESTAMP,
	UNIQUE (tenant_id, caller_id, type, key)
);
CREATE INDEX IF NOT EXISTS idx_memory_records_tenant_caller
	ON memory_records (tenant_id, caller_id);
`

// Driver implements store.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed store driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Put upserts a record by its scope key, preserving created_at on update.
func (d *Driver) Put(ctx context.Context, rec *store.Record) (*store.Record, error) {
	if rec == nil {
		return nil, store.ErrMissingKey
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	var expires any
	if rec.ExpiresAt != nil {
		expires = rec.ExpiresAt.UTC()
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO memory_records
			(tenant_id, caller_id, type, key, value, scope, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, caller_id, type, key) DO UPDATE SET
			value = excluded.value,
			scope = excluded.scope,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		string(rec.TenantID), string(rec.CallerID), string(rec.Type), rec.Key,
		rec.Value, string(rec.Scope), now, now, expires,
	)
	if err != nil {
		return nil, store.UnavailableError{Err: fmt.Errorf("upserting record: %w", err)}
	}

	// Opportunistically drop this tenant's expired rows; TTL enforcement
	// on reads does not depend on it.
	_, _ = d.db.ExecContext(ctx,
		`DELETE FROM memory_records WHERE tenant_id = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(rec.TenantID), now,
	)

	return d.fetchOne(ctx, rec)
}

// fetchOne reads back the authoritative row for a record's scope key.
func (d *Driver) fetchOne(ctx context.Context, rec *store.Record) (*store.Record, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT tenant_id, caller_id, type, key, value, scope, created_at, updated_at, expires_at
		FROM memory_records
		WHERE tenant_id = ? AND caller_id = ? AND type = ? AND key = ?`,
		string(rec.TenantID), string(rec.CallerID), string(rec.Type), rec.Key,
	)

	stored, err := scanRecord(row)
	if err != nil {
		return nil, store.UnavailableError{Err: fmt.Errorf("reading back record: %w", err)}
	}

	return stored, nil
}

// Get returns live records matching the query filters.
func (d *Driver) Get(ctx context.Context, q store.Query) ([]*store.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	query := `
		SELECT tenant_id, caller_id, type, key, value, scope, created_at, updated_at, expires_at
		FROM memory_records
		WHERE tenant_id = ?
		  AND (caller_id = '' OR caller_id = ?)
		  AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{string(q.TenantID), string(q.CallerID), now}

	if len(q.Types) > 0 {
		query += ` AND type IN (` + placeholders(len(q.Types)) + `)`
		for _, t := range q.Types {
			args = append(args, string(t))
		}
	} else {
		query += ` AND type != ?`
		args = append(args, string(store.TypeThreadSnapshot))
	}

	if q.KeyPrefix != "" {
		query += ` AND key LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(q.KeyPrefix)+"%")
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.UnavailableError{Err: fmt.Errorf("querying records: %w", err)}
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Search fetches the tenant/caller's live records and ranks them lexically.
func (d *Driver) Search(ctx context.Context, q store.SearchQuery) ([]*store.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	candidates, err := d.Get(ctx, store.Query{
		TenantID: q.TenantID,
		CallerID: q.CallerID,
	})
	if err != nil {
		return nil, err
	}

	return store.Rank(candidates, q.Text, q.Limit), nil
}

// PurgeTenant hard-deletes a tenant's records.
func (d *Driver) PurgeTenant(ctx context.Context, id tenant.ID) (int64, error) {
	if id == "" {
		return 0, store.ErrMissingTenant
	}

	result, err := d.db.ExecContext(ctx,
		`DELETE FROM memory_records WHERE tenant_id = ?`, string(id))
	if err != nil {
		return 0, store.UnavailableError{Err: fmt.Errorf("purging tenant: %w", err)}
	}

	return result.RowsAffected()
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func placeholders(n int) string {
	s := ""
	for i := range n {
		if i > 0 {
			s += ", "
		}
		s += "?"
	}
	return s
}

// escapeLike escapes LIKE wildcards so a key prefix is matched literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.Record, error) {
	var rec store.Record
	var tenantID, callerID, recType, scope string
	var expires sql.NullTime

	err := row.Scan(&tenantID, &callerID, &recType, &rec.Key, &rec.Value,
		&scope, &rec.CreatedAt, &rec.UpdatedAt, &expires)
	if err != nil {
		return nil, err
	}

	rec.TenantID = tenant.ID(tenantID)
	rec.CallerID = tenant.CallerID(callerID)
	rec.Type = store.Type(recType)
	rec.Scope = store.Scope(scope)
	if expires.Valid {
		t := expires.Time
		rec.ExpiresAt = &t
	}

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*store.Record, error) {
	records := make([]*store.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, store.UnavailableError{Err: fmt.Errorf("scanning record: %w", err)}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, store.UnavailableError{Err: fmt.Errorf("iterating records: %w", err)}
	}

	return records, nil
}

var _ store.Driver = (*Driver)(nil)
