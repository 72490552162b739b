// Package postgres is the PostgreSQL storage backend, built on pgx v5.
//
// Every CopyFrom call runs its COPY statements inside one transaction. Table
// names may be schema qualified ("ffl.licenses").
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ffldb/internal/storage"
	pgddl "ffldb/internal/storage/postgres/ddl"
)

// Kind is the storage kind this package registers.
const Kind = "postgres"

// open is replaced in tests.
var open = Open

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return open(ctx, cfg.DSN)
	})
	storage.RegisterDialect(Kind, pgddl.Dialect{})
}

// Repository writes through a small pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	// The converter writes from one goroutine.
	cfg.MaxConns = 2
	if cfg.ConnConfig.RuntimeParams["application_name"] == "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = "ffldb"
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", describe(err))
	}
	return &Repository{pool: pool}, nil
}

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

// CopyFrom COPYs every batch, in order, inside one transaction.
func (r *Repository) CopyFrom(ctx context.Context, batches ...storage.TableRows) (int64, error) {
	if len(batches) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for _, b := range batches {
		if len(b.Columns) == 0 {
			return 0, fmt.Errorf("postgres: copy into %s: no columns", b.Table)
		}
		if len(b.Rows) == 0 {
			continue
		}
		n, err := tx.CopyFrom(ctx, splitFQN(b.Table), b.Columns, pgx.CopyFromRows(b.Rows))
		if err != nil {
			return 0, fmt.Errorf("postgres: copy into %s: %w", b.Table, describe(err))
		}
		total += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", describe(err))
	}
	return total, nil
}

// describe surfaces the server's detail and SQLSTATE, which pgx leaves out
// of the error string.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}

// splitFQN turns "schema.table" into a pgx.Identifier, dropping empty
// segments.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// Exec runs one statement. Blank statements are ignored.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: exec: %w", describe(err))
	}
	return nil
}

const objectsQuery = `SELECT c.relname
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = current_schema()
  AND c.relkind IN ('r', 'p', 'v', 'm', 'f', 'i', 'I', 'S')
ORDER BY c.relname`

// Objects lists the relations in the current schema: tables, views,
// materialized views, indexes and sequences. They share one namespace, so
// any of them blocks a schema name.
func (r *Repository) Objects(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, objectsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: list objects: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list objects: %w", err)
	}
	return names, nil
}
