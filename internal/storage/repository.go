// Package storage contains storage-agnostic contracts and utilities.
//
// Backends (sqlite, postgres) register a Factory and a Dialect for their kind
// at init time. Callers open a Repository through New and render DDL through
// DialectFor, so nothing above this package branches on the backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TableRows is a set of rows for one table, aligned to Columns.
type TableRows struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// Repository is the minimal surface the converter needs from a backend.
type Repository interface {
	// Exec runs a single statement outside any caller-visible transaction
	// (typically DDL).
	Exec(ctx context.Context, sql string) error

	// Objects lists the names of existing tables, views and indexes.
	Objects(ctx context.Context) ([]string, error)

	// CopyFrom inserts every batch inside ONE transaction, in the given
	// order. On any error the transaction is rolled back and nothing from
	// this call is visible. It returns the number of rows inserted.
	CopyFrom(ctx context.Context, batches ...TableRows) (int64, error)

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string // "sqlite" or "postgres"
	DSN  string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the Factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Kind, err)
	}
	return repo, nil
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
