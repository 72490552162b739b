// Package sqlite is the default storage backend: a single database file
// written through database/sql and the pure-Go modernc.org/sqlite driver.
//
// SQLite has no bulk-load API, so CopyFrom runs one prepared INSERT per
// table inside a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ffldb/internal/storage"
	sqliteddl "ffldb/internal/storage/sqlite/ddl"
)

// Kind is the storage kind this package registers.
const Kind = "sqlite"

// open is replaced in tests.
var open = Open

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return open(ctx, cfg.DSN)
	})
	storage.RegisterDialect(Kind, sqliteddl.Dialect{})
}

// Repository writes to one SQLite database.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// pragmas are applied by the driver to every connection it opens.
var pragmas = []string{"busy_timeout(5000)", "foreign_keys(1)"}

// Open opens (creating if needed) the database at dsn, a file path or a
// "file:" URI, with foreign keys enforced.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// withPragmas appends a _pragma query parameter per entry of pragmas,
// keeping any parameters dsn already carries.
func withPragmas(dsn string) string {
	q := make(url.Values)
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + q.Encode()
}

// Close closes the database.
func (r *Repository) Close() { _ = r.db.Close() }

// CopyFrom inserts every batch in one transaction. Nothing is committed
// unless every row succeeds.
func (r *Repository) CopyFrom(ctx context.Context, batches ...storage.TableRows) (int64, error) {
	if len(batches) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, b := range batches {
		n, err := insert(ctx, tx, b)
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return total, nil
}

func insert(ctx context.Context, tx *sql.Tx, b storage.TableRows) (int64, error) {
	if len(b.Columns) == 0 {
		return 0, fmt.Errorf("sqlite: copy into %s: no columns", b.Table)
	}
	if len(b.Rows) == 0 {
		return 0, nil
	}

	cols := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = quoteIdent(c)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?%s)",
		quoteIdent(b.Table), strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)-1))

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert into %s: %w", b.Table, err)
	}
	defer stmt.Close()

	for i, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return 0, fmt.Errorf("sqlite: copy into %s: row %d has %d values for %d columns", b.Table, i, len(row), len(b.Columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: insert into %s: %w", b.Table, err)
		}
	}
	return int64(len(b.Rows)), nil
}

// Exec runs one statement. Blank statements are ignored.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// Objects lists user tables, views and indices, FTS5 shadow tables
// included. Automatic indices for UNIQUE and PRIMARY KEY are not listed.
func (r *Repository) Objects(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view', 'index') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list objects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: list objects: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
