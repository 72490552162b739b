// Package schema defines the normalized license database and writes it to a
// storage backend.
//
// The layout is fixed: one lookup table per normalization domain, the
// licenses fact table referencing them, a key/value meta table, a view that
// joins every reference back to its text, and a full-text index over names.
package schema

import (
	"fmt"
	"strings"

	"ffldb/internal/ddl"
	"ffldb/internal/normalize"
	"ffldb/internal/record"
)

// Version is written to ffl_meta.schema_version.
const Version = 1

// Object names.
const (
	FactTable  = "licenses"
	MetaTable  = "ffl_meta"
	View       = "license_view"
	NameSearch = "lkp_name_fts"
)

// Reference ties a fact column to the lookup domain it points into.
type Reference struct {
	Column string
	Domain normalize.Domain
}

// References lists every fact column holding a surrogate key.
var References = []Reference{
	{"region_id", normalize.DomainRegion},
	{"license_type_id", normalize.DomainLicenseType},
	{"expiration_code_id", normalize.DomainExpirationCode},
	{"license_name_id", normalize.DomainName},
	{"business_name_id", normalize.DomainName},
	{"premise_city_id", normalize.DomainCity},
	{"premise_state_id", normalize.DomainState},
	{"mailing_city_id", normalize.DomainCity},
	{"mailing_state_id", normalize.DomainState},
	{"status_id", normalize.DomainStatus},
}

// indexed fact columns besides the license_number primary key.
var indexed = []string{
	"premise_state_id",
	"license_type_id",
	"status_id",
	"expiration_code_id",
	"premise_city_id",
	"business_name_id",
}

// LookupColumns is the column order of every lookup table.
var LookupColumns = []string{"id", "value"}

// MetaColumns is the column order of the meta table.
var MetaColumns = []string{"key", "value"}

// Definition is the backend-agnostic schema, in creation order.
type Definition struct {
	Tables   []ddl.TableDef
	Indexes  []ddl.IndexDef
	Views    []ddl.ViewDef
	Searches []ddl.SearchDef
}

// Define returns the schema.
func Define() Definition {
	var def Definition

	for _, d := range normalize.Domains {
		def.Tables = append(def.Tables, ddl.TableDef{
			FQN: d.Table(),
			Columns: []ddl.ColumnDef{
				{Name: "id", SQLType: "integer", PrimaryKey: true},
				{Name: "value", SQLType: "text", Unique: true},
			},
		})
	}

	refs := make(map[string]normalize.Domain, len(References))
	for _, r := range References {
		refs[r.Column] = r.Domain
	}
	fact := ddl.TableDef{FQN: FactTable}
	for _, c := range record.FactColumns {
		col := ddl.ColumnDef{Name: c, SQLType: "text", Nullable: true}
		switch c {
		case "license_number":
			col.Nullable = false
			col.PrimaryKey = true
		case "source_line":
			col.SQLType = "integer"
			col.Nullable = false
		}
		if d, ok := refs[c]; ok {
			col.SQLType = "integer"
			col.References = &ddl.ForeignKey{Table: d.Table(), Column: "id"}
		}
		fact.Columns = append(fact.Columns, col)
	}
	def.Tables = append(def.Tables, fact)

	def.Tables = append(def.Tables, ddl.TableDef{
		FQN: MetaTable,
		Columns: []ddl.ColumnDef{
			{Name: "key", SQLType: "text", PrimaryKey: true},
			{Name: "value", SQLType: "text"},
		},
	})

	for _, c := range indexed {
		def.Indexes = append(def.Indexes, ddl.IndexDef{
			Name:    "ix_" + FactTable + "_" + c,
			Table:   FactTable,
			Columns: []string{c},
		})
	}

	def.Views = append(def.Views, ddl.ViewDef{Name: View, Select: viewSelect()})

	def.Searches = append(def.Searches, ddl.SearchDef{
		Name:    NameSearch,
		Table:   normalize.DomainName.Table(),
		Key:     "id",
		Columns: []string{"value"},
	})
	return def
}

// Names returns every object name the schema creates.
func (d Definition) Names() []string {
	var out []string
	for _, t := range d.Tables {
		out = append(out, t.FQN)
	}
	for _, ix := range d.Indexes {
		out = append(out, ix.Name)
	}
	for _, v := range d.Views {
		out = append(out, v.Name)
	}
	for _, s := range d.Searches {
		out = append(out, s.Name)
	}
	return out
}

// viewSelect joins each reference back to its lookup text. The output
// columns carry the parsed field names (the _id suffix dropped).
func viewSelect() string {
	refs := make(map[string]normalize.Domain, len(References))
	for _, r := range References {
		refs[r.Column] = r.Domain
	}

	var (
		cols  []string
		joins []string
	)
	for _, c := range record.FactColumns {
		d, ok := refs[c]
		if !ok {
			cols = append(cols, "f."+c)
			continue
		}
		name := strings.TrimSuffix(c, "_id")
		alias := "j_" + name
		cols = append(cols, fmt.Sprintf("%s.value AS %s", alias, name))
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.id = f.%s", d.Table(), alias, alias, c))
	}
	return "SELECT " + strings.Join(cols, ",\n       ") +
		"\nFROM " + FactTable + " f\n" + strings.Join(joins, "\n")
}
