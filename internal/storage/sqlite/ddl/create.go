// Package ddl provides SQLite-specific helpers for generating DDL from the
// generic ddl model.
//
// The builder here:
//   - Uses simple double-quoted identifiers: "table", "col".
//   - Emits plain CREATE TABLE; existing objects are a conflict the caller
//     detects before rendering.
//   - Treats ColumnDef.Default as raw SQL.
//   - Renders PRIMARY KEY and FOREIGN KEY as separate table constraints.
//   - Builds full-text search as an FTS5 external-content table.
package ddl

import (
	"fmt"
	"strings"

	gddl "ffldb/internal/ddl"
)

var renderer = gddl.Renderer{
	Prefix: "sqlite ddl",
	Ident:  quoteIdent,
	Type:   MapType,
}

// Dialect implements storage.Dialect for SQLite.
type Dialect struct{}

// CreateTable renders a plain CREATE TABLE. A lone INTEGER primary key
// still becomes the rowid alias when declared as a table constraint.
func (Dialect) CreateTable(t gddl.TableDef) (string, error) { return renderer.CreateTable(t) }

// CreateIndex implements storage.Dialect.
func (Dialect) CreateIndex(ix gddl.IndexDef) (string, error) { return renderer.CreateIndex(ix) }

// CreateView implements storage.Dialect.
func (Dialect) CreateView(v gddl.ViewDef) (string, error) { return renderer.CreateView(v) }

// CreateSearch renders an FTS5 table that indexes s.Table without storing a
// second copy of the text. It is populated by the rebuild in Finalize.
func (Dialect) CreateSearch(s gddl.SearchDef) ([]string, error) {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Table) == "" {
		return nil, fmt.Errorf("sqlite ddl: search index needs a name and a table")
	}
	if strings.TrimSpace(s.Key) == "" || len(s.Columns) == 0 {
		return nil, fmt.Errorf("sqlite ddl: search index %s needs a key and columns", s.Name)
	}
	cols := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		cols = append(cols, quoteIdent(c))
	}
	return []string{fmt.Sprintf(
		"CREATE VIRTUAL TABLE %s USING fts5(%s, content=%s, content_rowid=%s);",
		quoteIdent(s.Name), strings.Join(cols, ", "), quoteLiteral(s.Table), quoteLiteral(s.Key),
	)}, nil
}

// DropTable implements storage.Dialect.
func (Dialect) DropTable(fqn string) string { return renderer.DropTable(fqn) }

// DropView implements storage.Dialect.
func (Dialect) DropView(name string) string { return renderer.DropView(name) }

// DropSearch drops the FTS5 table along with its shadow tables.
func (Dialect) DropSearch(s gddl.SearchDef) []string {
	return []string{renderer.DropTable(s.Name)}
}

// Finalize rebuilds search indices, refreshes planner statistics and
// compacts the file. VACUUM must run outside a transaction.
func (Dialect) Finalize(searches []gddl.SearchDef) []string {
	out := make([]string, 0, len(searches)+2)
	for _, s := range searches {
		out = append(out, fmt.Sprintf("INSERT INTO %s(%s) VALUES('rebuild');", quoteIdent(s.Name), quoteIdent(s.Name)))
	}
	return append(out, "ANALYZE;", "VACUUM;")
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// MapType maps the model's column types onto SQLite affinities. Dates are
// ISO-8601 text.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "integer", "int", "bigint":
		return "INTEGER"
	case "real", "float", "double":
		return "REAL"
	default:
		return "TEXT"
	}
}
