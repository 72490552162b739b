// Package ddl is a small dialect-neutral model of the tables, indices,
// views and search indices a conversion creates.
//
// A Renderer turns the model into CREATE statements. Dialect packages supply
// identifier quoting and type mapping; defaults are raw SQL and are emitted
// as given.
package ddl

import (
	"fmt"
	"sort"
	"strings"
)

// Renderer carries the dialect hooks used by the shared builders.
type Renderer struct {
	// Prefix is used in error messages, e.g. "sqlite ddl".
	Prefix string
	// Ident quotes a single identifier.
	Ident func(string) string
	// Type maps ColumnDef.SQLType to the dialect type.
	Type func(string) string
	// PrimaryKeyNotNull forces NOT NULL on primary-key columns.
	PrimaryKeyNotNull bool
	// SortPrimaryKey orders PRIMARY KEY columns by name for deterministic
	// output regardless of column order.
	SortPrimaryKey bool
}

// QuoteFQN quotes each dotted segment of fqn with ident, skipping empty
// segments.
func (r Renderer) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, r.Ident(p))
	}
	return strings.Join(out, ".")
}

// CreateTable renders t with r's quoting and type mapping. Every column
// needs a name and a type. Primary-key columns are collected into one
// PRIMARY KEY clause and references become FOREIGN KEY clauses, both after
// the column list.
func (r Renderer) CreateTable(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s: table FQN must not be empty", r.Prefix)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: at least one column is required", r.Prefix)
	}

	cols := make([]string, 0, len(t.Columns)+2)
	pks := make([]string, 0, len(t.Columns))
	var fks []string

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s: column with empty name in table %s", r.Prefix, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s: column %s missing SQLType", r.Prefix, name)
		}

		var sb strings.Builder
		sb.WriteString(r.Ident(name))
		sb.WriteByte(' ')
		sb.WriteString(r.Type(typ))

		if !c.Nullable || (c.PrimaryKey && r.PrimaryKeyNotNull) {
			sb.WriteString(" NOT NULL")
		}
		if c.Unique {
			sb.WriteString(" UNIQUE")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, r.Ident(name))
		}
		if fk := c.References; fk != nil {
			if strings.TrimSpace(fk.Table) == "" || strings.TrimSpace(fk.Column) == "" {
				return "", fmt.Errorf("%s: column %s has an incomplete foreign key", r.Prefix, name)
			}
			fks = append(fks, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
				r.Ident(name), r.QuoteFQN(fk.Table), r.Ident(fk.Column)))
		}
	}

	if len(pks) > 0 {
		if r.SortPrimaryKey {
			sort.Strings(pks)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	cols = append(cols, fks...)

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		r.QuoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// CreateIndex renders CREATE [UNIQUE] INDEX name ON table (cols).
func (r Renderer) CreateIndex(ix IndexDef) (string, error) {
	name := strings.TrimSpace(ix.Name)
	if name == "" {
		return "", fmt.Errorf("%s: index name must not be empty", r.Prefix)
	}
	if strings.TrimSpace(ix.Table) == "" {
		return "", fmt.Errorf("%s: index %s has no table", r.Prefix, name)
	}
	if len(ix.Columns) == 0 {
		return "", fmt.Errorf("%s: index %s has no columns", r.Prefix, name)
	}
	cols := make([]string, 0, len(ix.Columns))
	for _, c := range ix.Columns {
		cols = append(cols, r.Ident(c))
	}
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		unique, r.Ident(name), r.QuoteFQN(ix.Table), strings.Join(cols, ", ")), nil
}

// CreateView renders CREATE VIEW name AS select.
func (r Renderer) CreateView(v ViewDef) (string, error) {
	if strings.TrimSpace(v.Name) == "" {
		return "", fmt.Errorf("%s: view name must not be empty", r.Prefix)
	}
	sel := strings.TrimSpace(v.Select)
	if sel == "" {
		return "", fmt.Errorf("%s: view %s has no SELECT", r.Prefix, v.Name)
	}
	return fmt.Sprintf("CREATE VIEW %s AS\n%s;", r.QuoteFQN(v.Name), strings.TrimSuffix(sel, ";")), nil
}

// DropTable renders DROP TABLE IF EXISTS for fqn.
func (r Renderer) DropTable(fqn string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", r.QuoteFQN(fqn))
}

// DropView renders DROP VIEW IF EXISTS for name.
func (r Renderer) DropView(name string) string {
	return fmt.Sprintf("DROP VIEW IF EXISTS %s;", r.QuoteFQN(name))
}
