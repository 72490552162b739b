// Package ddl contains Postgres-specific helpers for generating DDL.
//
// It renders the generic ddl model using Postgres-style quoting (double-quoted
// identifiers, escaped quotes). Primary-key columns are always NOT NULL and
// the PRIMARY KEY clause is sorted for deterministic output.
package ddl

import (
	"fmt"
	"strings"

	gddl "ffldb/internal/ddl"
)

var renderer = gddl.Renderer{
	Prefix:            "postgres ddl",
	Ident:             quoteIdent,
	Type:              MapType,
	PrimaryKeyNotNull: true,
	SortPrimaryKey:    true,
}

// Dialect implements storage.Dialect for Postgres.
type Dialect struct{}

// CreateTable implements storage.Dialect.
func (Dialect) CreateTable(t gddl.TableDef) (string, error) { return renderer.CreateTable(t) }

// CreateIndex implements storage.Dialect.
func (Dialect) CreateIndex(ix gddl.IndexDef) (string, error) { return renderer.CreateIndex(ix) }

// CreateView implements storage.Dialect.
func (Dialect) CreateView(v gddl.ViewDef) (string, error) { return renderer.CreateView(v) }

// CreateSearch renders a GIN index over to_tsvector of the searched columns.
// Postgres maintains it on insert, so Finalize has nothing to rebuild.
func (Dialect) CreateSearch(s gddl.SearchDef) ([]string, error) {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Table) == "" {
		return nil, fmt.Errorf("postgres ddl: search index needs a name and a table")
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("postgres ddl: search index %s needs columns", s.Name)
	}
	parts := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		parts = append(parts, fmt.Sprintf("coalesce(%s, '')", quoteIdent(c)))
	}
	return []string{fmt.Sprintf(
		"CREATE INDEX %s ON %s USING GIN (to_tsvector('simple', %s));",
		quoteIdent(s.Name), quoteFQN(s.Table), strings.Join(parts, " || ' ' || "),
	)}, nil
}

// DropTable implements storage.Dialect.
func (Dialect) DropTable(fqn string) string { return renderer.DropTable(fqn) }

// DropView implements storage.Dialect.
func (Dialect) DropView(name string) string { return renderer.DropView(name) }

// DropSearch drops the GIN index.
func (Dialect) DropSearch(s gddl.SearchDef) []string {
	return []string{fmt.Sprintf("DROP INDEX IF EXISTS %s;", quoteIdent(s.Name))}
}

// Finalize refreshes planner statistics.
func (Dialect) Finalize([]gddl.SearchDef) []string { return []string{"ANALYZE;"} }

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteFQN(fqn string) string { return renderer.QuoteFQN(fqn) }

// MapType maps the model's column types onto Postgres types.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "integer", "int", "bigint":
		return "BIGINT"
	case "real", "float", "double":
		return "DOUBLE PRECISION"
	case "date":
		return "DATE"
	default:
		return "TEXT"
	}
}
