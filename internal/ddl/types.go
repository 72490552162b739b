package ddl

// ColumnDef describes a single column in a table definition. It uses simple,
// database-agnostic fields; dialect packages map SQLType and quote names.
//
// Fields:
//   - Name: logical column name (unquoted; quoting/escaping happens at render time)
//   - SQLType: logical or target SQL type (e.g., INTEGER, TEXT)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Unique: whether the column carries its own UNIQUE constraint
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
//   - References: optional foreign key target
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Default    string
	References *ForeignKey
}

// ForeignKey points a column at Table(Column).
type ForeignKey struct {
	Table  string
	Column string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table") and will
// be quoted/escaped by renderers as needed.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// IndexDef describes a secondary index.
type IndexDef struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// ViewDef is a named SELECT.
type ViewDef struct {
	Name   string
	Select string
}

// SearchDef asks for a full-text index named Name over Table.Columns. Key
// is the table's integer primary key.
type SearchDef struct {
	Name    string
	Table   string
	Key     string
	Columns []string
}
