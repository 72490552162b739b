package ddl

import (
	"strconv"
	"strings"
	"testing"
)

// plain renders names and types verbatim.
var plain = Renderer{
	Prefix: "ddl",
	Ident:  func(s string) string { return s },
	Type:   func(s string) string { return s },
}

func TestCreateTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		wantSQL     string
		wantErr     bool
		errContains string
	}{
		{
			name: "empty FQN returns error",
			def: TableDef{
				FQN:     "",
				Columns: []ColumnDef{{Name: "id", SQLType: "INT"}},
			},
			wantErr:     true,
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "public.t"},
			wantErr:     true,
			errContains: "at least one column is required",
		},
		{
			name: "column with empty name returns error",
			def: TableDef{
				FQN:     "t",
				Columns: []ColumnDef{{Name: "", SQLType: "INT"}},
			},
			wantErr:     true,
			errContains: "column with empty name",
		},
		{
			name: "column with empty type returns error",
			def: TableDef{
				FQN:     "t",
				Columns: []ColumnDef{{Name: "id", SQLType: ""}},
			},
			wantErr:     true,
			errContains: "missing SQLType",
		},
		{
			name: "incomplete foreign key returns error",
			def: TableDef{
				FQN: "t",
				Columns: []ColumnDef{
					{Name: "state_id", SQLType: "INT", References: &ForeignKey{Table: "lkp_state"}},
				},
			},
			wantErr:     true,
			errContains: "incomplete foreign key",
		},
		{
			name: "single nullable column without default",
			def: TableDef{
				FQN:     "t",
				Columns: []ColumnDef{{Name: "id", SQLType: "INT", Nullable: true}},
			},
			wantSQL: "CREATE TABLE t (\n  id INT\n);",
		},
		{
			name: "unique not null column",
			def: TableDef{
				FQN:     "lkp_state",
				Columns: []ColumnDef{{Name: "value", SQLType: "TEXT", Unique: true}},
			},
			wantSQL: "CREATE TABLE lkp_state (\n  value TEXT NOT NULL UNIQUE\n);",
		},
		{
			name: "primary key and foreign key clauses",
			def: TableDef{
				FQN: "licenses",
				Columns: []ColumnDef{
					{Name: "license_number", SQLType: "TEXT", PrimaryKey: true},
					{Name: "state_id", SQLType: "INT", Nullable: true, References: &ForeignKey{Table: "lkp_state", Column: "id"}},
					{Name: "note", SQLType: "TEXT", Nullable: true, Default: "'none'"},
				},
			},
			wantSQL: "CREATE TABLE licenses (\n" +
				"  license_number TEXT NOT NULL,\n" +
				"  state_id INT,\n" +
				"  note TEXT DEFAULT 'none',\n" +
				"  PRIMARY KEY (license_number),\n" +
				"  FOREIGN KEY (state_id) REFERENCES lkp_state (id)\n" +
				");",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := plain.CreateTable(tt.def)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CreateTable() error = nil, want non-nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("CreateTable() error = %q, want containing %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateTable() unexpected error = %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("CreateTable() =\n%s\nwant:\n%s", got, tt.wantSQL)
			}
		})
	}
}

// TestRendererCreateIndex covers index rendering and its validation.
func TestRendererCreateIndex(t *testing.T) {
	t.Parallel()

	got, err := plain.CreateIndex(IndexDef{Name: "ix_state", Table: "licenses", Columns: []string{"state_id", "type_id"}})
	if err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	if want := "CREATE INDEX ix_state ON licenses (state_id, type_id);"; got != want {
		t.Fatalf("CreateIndex() = %q, want %q", got, want)
	}

	got, err = plain.CreateIndex(IndexDef{Name: "ux", Table: "t", Columns: []string{"a"}, Unique: true})
	if err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	if !strings.HasPrefix(got, "CREATE UNIQUE INDEX ux") {
		t.Fatalf("CreateIndex() = %q, want UNIQUE index", got)
	}

	for _, bad := range []IndexDef{
		{Table: "t", Columns: []string{"a"}},
		{Name: "ix", Columns: []string{"a"}},
		{Name: "ix", Table: "t"},
	} {
		if _, err := plain.CreateIndex(bad); err == nil {
			t.Fatalf("CreateIndex(%+v) error = nil, want non-nil", bad)
		}
	}
}

// TestRendererCreateView trims a trailing semicolon from the SELECT.
func TestRendererCreateView(t *testing.T) {
	t.Parallel()

	got, err := plain.CreateView(ViewDef{Name: "v", Select: "SELECT 1;"})
	if err != nil {
		t.Fatalf("CreateView() error = %v", err)
	}
	if want := "CREATE VIEW v AS\nSELECT 1;"; got != want {
		t.Fatalf("CreateView() = %q, want %q", got, want)
	}
	if _, err := plain.CreateView(ViewDef{Name: "v"}); err == nil {
		t.Fatalf("CreateView() with empty SELECT error = nil, want non-nil")
	}
}

// TestQuoteFQN checks segment handling with a quoting renderer.
func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	r := Renderer{Ident: func(s string) string { return "[" + s + "]" }}
	if got := r.QuoteFQN(" main..licenses "); got != "[main].[licenses]" {
		t.Fatalf("QuoteFQN() = %q", got)
	}
}

func TestRendererDrop(t *testing.T) {
	t.Parallel()

	r := Renderer{Ident: func(s string) string { return `"` + s + `"` }}
	if got := r.DropTable("main.licenses"); got != `DROP TABLE IF EXISTS "main"."licenses";` {
		t.Fatalf("DropTable() = %q", got)
	}
	if got := r.DropView("license_view"); got != `DROP VIEW IF EXISTS "license_view";` {
		t.Fatalf("DropView() = %q", got)
	}
}

func BenchmarkCreateTableWide(b *testing.B) {
	const numCols = 64
	cols := make([]ColumnDef, 0, numCols)
	for i := 0; i < numCols; i++ {
		cols = append(cols, ColumnDef{Name: "col_" + strconv.Itoa(i), SQLType: "TEXT", Nullable: i%2 == 0})
	}
	cols[0].PrimaryKey = true
	def := TableDef{FQN: "wide_table", Columns: cols}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := plain.CreateTable(def); err != nil {
			b.Fatalf("CreateTable() error = %v", err)
		}
	}
}
