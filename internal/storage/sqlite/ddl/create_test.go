package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gddl "ffldb/internal/ddl"
)

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"licenses":    `"licenses"`,
		"":            `""`,
		"premise zip": `"premise zip"`,
		`odd"name`:    `"odd""name"`,
	} {
		assert.Equal(t, want, quoteIdent(in), in)
	}
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}

func TestMapType(t *testing.T) {
	t.Parallel()

	tests := []struct{ kind, want string }{
		{"integer", "INTEGER"},
		{" BIGINT ", "INTEGER"},
		{"real", "REAL"},
		{"text", "TEXT"},
		{"date", "TEXT"},
		{"", "TEXT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapType(tt.kind), tt.kind)
	}
}

func TestCreateTable_LookupAndFact(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	got, err := d.CreateTable(gddl.TableDef{
		FQN: "lkp_state",
		Columns: []gddl.ColumnDef{
			{Name: "id", SQLType: "integer", PrimaryKey: true},
			{Name: "value", SQLType: "text", Unique: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"lkp_state\" (\n"+
		"  \"id\" INTEGER NOT NULL,\n"+
		"  \"value\" TEXT NOT NULL UNIQUE,\n"+
		"  PRIMARY KEY (\"id\")\n"+
		");", got)

	got, err = d.CreateTable(gddl.TableDef{
		FQN: "licenses",
		Columns: []gddl.ColumnDef{
			{Name: "license_number", SQLType: "text", PrimaryKey: true},
			{Name: "premise_state_id", SQLType: "integer", Nullable: true, References: &gddl.ForeignKey{Table: "lkp_state", Column: "id"}},
			{Name: "expiration_date", SQLType: "date", Nullable: true},
		},
	})
	require.NoError(t, err)
	for _, want := range []string{
		`"premise_state_id" INTEGER,`,
		`"expiration_date" TEXT,`,
		`PRIMARY KEY ("license_number")`,
		`FOREIGN KEY ("premise_state_id") REFERENCES "lkp_state" ("id")`,
	} {
		assert.Contains(t, got, want)
	}
}

func TestCreateTable_Invalid(t *testing.T) {
	t.Parallel()

	for _, def := range []gddl.TableDef{
		{FQN: "  ", Columns: []gddl.ColumnDef{{Name: "id", SQLType: "integer"}}},
		{FQN: "licenses"},
		{FQN: "licenses", Columns: []gddl.ColumnDef{{Name: " ", SQLType: "text"}}},
		{FQN: "licenses", Columns: []gddl.ColumnDef{{Name: "id"}}},
	} {
		sql, err := Dialect{}.CreateTable(def)
		assert.Error(t, err, "%+v", def)
		assert.Empty(t, sql)
	}
}

func TestCreateIndexAndView(t *testing.T) {
	t.Parallel()

	ix, err := Dialect{}.CreateIndex(gddl.IndexDef{Name: "ix_licenses_premise_state", Table: "licenses", Columns: []string{"premise_state_id"}})
	require.NoError(t, err)
	assert.Equal(t, `CREATE INDEX "ix_licenses_premise_state" ON "licenses" ("premise_state_id");`, ix)

	v, err := Dialect{}.CreateView(gddl.ViewDef{Name: "license_view", Select: "SELECT 1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v, `CREATE VIEW "license_view" AS`), v)
}

func TestSearchAndFinalize(t *testing.T) {
	t.Parallel()

	s := gddl.SearchDef{Name: "name_fts", Table: "lkp_name", Key: "id", Columns: []string{"value"}}
	stmts, err := Dialect{}.CreateSearch(s)
	require.NoError(t, err)
	assert.Equal(t, []string{`CREATE VIRTUAL TABLE "name_fts" USING fts5("value", content='lkp_name', content_rowid='id');`}, stmts)

	_, err = Dialect{}.CreateSearch(gddl.SearchDef{Name: "x", Table: "t"})
	assert.Error(t, err)
	_, err = Dialect{}.CreateSearch(gddl.SearchDef{Table: "t", Key: "id", Columns: []string{"v"}})
	assert.Error(t, err)

	assert.Equal(t, []string{
		`INSERT INTO "name_fts"("name_fts") VALUES('rebuild');`,
		"ANALYZE;",
		"VACUUM;",
	}, Dialect{}.Finalize([]gddl.SearchDef{s}))
	assert.Equal(t, []string{`DROP TABLE IF EXISTS "name_fts";`}, Dialect{}.DropSearch(s))
}

func TestDrop(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `DROP TABLE IF EXISTS "licenses";`, Dialect{}.DropTable("licenses"))
	assert.Equal(t, `DROP VIEW IF EXISTS "license_view";`, Dialect{}.DropView("license_view"))
}
