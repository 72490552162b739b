package storage

import (
	"fmt"
	"sync"

	"ffldb/internal/ddl"
)

// Dialect renders the generic ddl model for one backend. Backends register
// their Dialect for a storage kind at init time, alongside their Factory.
type Dialect interface {
	CreateTable(t ddl.TableDef) (string, error)
	CreateIndex(ix ddl.IndexDef) (string, error)
	CreateView(v ddl.ViewDef) (string, error)

	// CreateSearch returns the statements that build a full-text index, or
	// nothing when the backend has no such feature.
	CreateSearch(s ddl.SearchDef) ([]string, error)

	// Finalize returns statements to run once after loading (search index
	// rebuilds, statistics, compaction).
	Finalize(searches []ddl.SearchDef) []string

	// Drop statements tolerate missing objects. Dropping a table drops its
	// indices.
	DropTable(fqn string) string
	DropView(name string) string
	DropSearch(s ddl.SearchDef) []string
}

var (
	dialectMu sync.RWMutex
	dialects  = map[string]Dialect{}
)

// RegisterDialect registers (or replaces) the Dialect for kind.
func RegisterDialect(kind string, d Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the Dialect registered for kind.
func DialectFor(kind string) (Dialect, error) {
	dialectMu.RLock()
	d, ok := dialects[kind]
	dialectMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no DDL dialect registered for storage.kind=%q", kind)
	}
	return d, nil
}
