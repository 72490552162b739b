package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ffldb/internal/storage"
)

// ErrSchemaConflict matches a *ConflictError.
var ErrSchemaConflict = errors.New("schema conflict")

// ConflictError reports schema objects that already exist in the target.
type ConflictError struct {
	Objects []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schema: target already contains %s", strings.Join(e.Objects, ", "))
}

// Is reports whether target is ErrSchemaConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrSchemaConflict }

// Writer creates and finalizes the schema through a storage backend.
type Writer struct {
	repo    storage.Repository
	dialect storage.Dialect
	def     Definition
	log     *slog.Logger

	// created is set once CreateSchema has passed the conflict check, so
	// every schema name found afterwards is one this writer made.
	created bool
}

// NewWriter returns a Writer for repo rendered in dialect. A nil logger
// discards output.
func NewWriter(repo storage.Repository, dialect storage.Dialect, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Writer{repo: repo, dialect: dialect, def: Define(), log: log}
}

// CreateSchema creates every table, index, view and search index. It fails
// with a *ConflictError, before creating anything, when any of those names
// already exists. A statement that fails part way drops what was created.
func (w *Writer) CreateSchema(ctx context.Context) error {
	existing, err := w.repo.Objects(ctx)
	if err != nil {
		return fmt.Errorf("schema: list existing objects: %w", err)
	}
	if clash := w.conflicts(existing); len(clash) > 0 {
		return &ConflictError{Objects: clash}
	}

	stmts, err := w.statements()
	if err != nil {
		return err
	}
	w.created = true
	for _, s := range stmts {
		if err := w.repo.Exec(ctx, s); err != nil {
			err = fmt.Errorf("schema: create: %w", err)
			if derr := w.Drop(ctx); derr != nil {
				return errors.Join(err, derr)
			}
			return err
		}
	}
	w.log.Info("schema: created", "tables", len(w.def.Tables), "indexes", len(w.def.Indexes), "statements", len(stmts))
	return nil
}

// Drop removes everything CreateSchema created, leaving the target as it
// found it. It does nothing when CreateSchema did not get past the conflict
// check. Cancellation of ctx is ignored so a canceled run still cleans up.
func (w *Writer) Drop(ctx context.Context) error {
	if !w.created {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dropTimeout)
	defer cancel()

	for _, s := range w.dropStatements() {
		if err := w.repo.Exec(ctx, s); err != nil {
			return fmt.Errorf("schema: drop: %w", err)
		}
	}
	w.created = false
	w.log.Warn("schema: dropped partial schema")
	return nil
}

// dropTimeout bounds Drop once the caller's context is gone.
const dropTimeout = 30 * time.Second

// dropStatements reverses creation order: the view and search index first,
// then tables with the fact table ahead of the lookups it references.
func (w *Writer) dropStatements() []string {
	var out []string
	for i := len(w.def.Views) - 1; i >= 0; i-- {
		out = append(out, w.dialect.DropView(w.def.Views[i].Name))
	}
	for i := len(w.def.Searches) - 1; i >= 0; i-- {
		out = append(out, w.dialect.DropSearch(w.def.Searches[i])...)
	}
	for i := len(w.def.Tables) - 1; i >= 0; i-- {
		out = append(out, w.dialect.DropTable(w.def.Tables[i].FQN))
	}
	return out
}

func (w *Writer) conflicts(existing []string) []string {
	ours := make(map[string]struct{}, len(w.def.Names()))
	for _, n := range w.def.Names() {
		ours[strings.ToLower(n)] = struct{}{}
	}
	var clash []string
	for _, e := range existing {
		if _, ok := ours[strings.ToLower(e)]; ok {
			clash = append(clash, e)
		}
	}
	return clash
}

// statements renders the full DDL in creation order: referenced lookup
// tables come before the fact table.
func (w *Writer) statements() ([]string, error) {
	var out []string
	for _, t := range w.def.Tables {
		s, err := w.dialect.CreateTable(t)
		if err != nil {
			return nil, fmt.Errorf("schema: render %s: %w", t.FQN, err)
		}
		out = append(out, s)
	}
	for _, ix := range w.def.Indexes {
		s, err := w.dialect.CreateIndex(ix)
		if err != nil {
			return nil, fmt.Errorf("schema: render %s: %w", ix.Name, err)
		}
		out = append(out, s)
	}
	for _, v := range w.def.Views {
		s, err := w.dialect.CreateView(v)
		if err != nil {
			return nil, fmt.Errorf("schema: render %s: %w", v.Name, err)
		}
		out = append(out, s)
	}
	for _, sd := range w.def.Searches {
		s, err := w.dialect.CreateSearch(sd)
		if err != nil {
			return nil, fmt.Errorf("schema: render %s: %w", sd.Name, err)
		}
		out = append(out, s...)
	}
	return out, nil
}

// Finalize runs the backend's post-load statements.
func (w *Writer) Finalize(ctx context.Context) error {
	for _, s := range w.dialect.Finalize(w.def.Searches) {
		if err := w.repo.Exec(ctx, s); err != nil {
			return fmt.Errorf("schema: finalize: %w", err)
		}
	}
	w.log.Debug("schema: finalized")
	return nil
}
