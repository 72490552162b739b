// Package loader buffers normalized license rows and persists them in
// batches.
//
// Every flush is two transactions: first the lookup values assigned since
// the previous flush (all domains together), then the buffered fact rows.
// Lookup keys are therefore always committed before any row that references
// them, and a failed flush leaves nothing from that transaction behind.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"ffldb/internal/metrics"
	"ffldb/internal/normalize"
	"ffldb/internal/record"
	"ffldb/internal/schema"
	"ffldb/internal/storage"
)

// DefaultBatchSize is the number of fact rows per transaction.
const DefaultBatchSize = 5000

// ErrPersistenceFailure matches a *PersistenceError.
var ErrPersistenceFailure = errors.New("persistence failure")

// PersistenceError reports a rolled-back write.
type PersistenceError struct {
	Op     string // "lookups", "records" or "meta"
	Tables []string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("loader: persist %s %v: %v", e.Op, e.Tables, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPersistenceFailure.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistenceFailure }

// Options configures a Loader.
type Options struct {
	BatchSize int
	Job       string // metrics job label
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Loader writes normalized rows and their lookup values to a Repository.
// It is not safe for concurrent use.
type Loader struct {
	repo storage.Repository
	norm *normalize.Normalizer
	opts Options

	buf      [][]any
	progress *storage.Progress
	lookups  int64
}

// New returns a Loader writing through repo. Lookup values come from norm.
func New(repo storage.Repository, norm *normalize.Normalizer, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		repo:     repo,
		norm:     norm,
		opts:     opts,
		buf:      make([][]any, 0, opts.BatchSize),
		progress: storage.NewProgress(opts.Clock, opts.Logger, "loader"),
	}
}

// Add buffers rec and flushes when the buffer reaches the batch size.
func (l *Loader) Add(ctx context.Context, rec record.Normalized) error {
	l.buf = append(l.buf, rec.Row())
	if len(l.buf) >= l.opts.BatchSize {
		return l.Flush(ctx)
	}
	return nil
}

// Flush commits pending lookup values, then the buffered rows.
func (l *Loader) Flush(ctx context.Context) error {
	if err := l.FlushLookups(ctx); err != nil {
		return err
	}
	return l.FlushRecords(ctx)
}

// FlushLookups commits every lookup value assigned since the previous flush
// in one transaction. Call it before FlushRecords; rows referencing
// uncommitted keys violate their foreign keys.
func (l *Loader) FlushLookups(ctx context.Context) error {
	var (
		batches []storage.TableRows
		domains []normalize.Domain
		tables  []string
	)
	for _, d := range normalize.Domains {
		pending := l.norm.Pending(d)
		if len(pending) == 0 {
			continue
		}
		rows := make([][]any, len(pending))
		for i, e := range pending {
			rows[i] = []any{e.Key, e.Value}
		}
		batches = append(batches, storage.TableRows{Table: d.Table(), Columns: schema.LookupColumns, Rows: rows})
		domains = append(domains, d)
		tables = append(tables, d.Table())
	}
	if len(batches) == 0 {
		return nil
	}

	start := l.opts.Clock.Now()
	n, err := l.repo.CopyFrom(ctx, batches...)
	metrics.RecordStep(l.opts.Job, "flush_lookups", err, l.opts.Clock.Since(start))
	if err != nil {
		l.progress.Failed(err)
		return &PersistenceError{Op: "lookups", Tables: tables, Err: err}
	}

	for i, d := range domains {
		l.norm.MarkFlushed(d)
		metrics.RecordLookups(l.opts.Job, string(d), int64(len(batches[i].Rows)))
	}
	l.lookups += n
	l.opts.Logger.Debug("loader: lookups committed", "values", n, "tables", tables)
	return nil
}

// FlushRecords commits the buffered fact rows in one transaction.
func (l *Loader) FlushRecords(ctx context.Context) error {
	if len(l.buf) == 0 {
		return nil
	}

	start := l.opts.Clock.Now()
	n, err := l.repo.CopyFrom(ctx, storage.TableRows{
		Table:   schema.FactTable,
		Columns: record.FactColumns,
		Rows:    l.buf,
	})
	metrics.RecordStep(l.opts.Job, "flush_records", err, l.opts.Clock.Since(start))
	if err != nil {
		l.progress.Failed(err)
		return &PersistenceError{Op: "records", Tables: []string{schema.FactTable}, Err: err}
	}

	// Reuse allocated slice; keep capacity to avoid churn.
	l.buf = l.buf[:0]
	l.progress.Batch(n)
	metrics.RecordRow(l.opts.Job, "written", n)
	metrics.RecordBatches(l.opts.Job, 1)
	return nil
}

// WriteMeta stores meta in the meta table, keys in sorted order, in one
// transaction.
func (l *Loader) WriteMeta(ctx context.Context, meta map[string]string) error {
	if len(meta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]any, len(keys))
	for i, k := range keys {
		rows[i] = []any{k, meta[k]}
	}
	if _, err := l.repo.CopyFrom(ctx, storage.TableRows{Table: schema.MetaTable, Columns: schema.MetaColumns, Rows: rows}); err != nil {
		return &PersistenceError{Op: "meta", Tables: []string{schema.MetaTable}, Err: err}
	}
	return nil
}

// Written returns the committed fact rows.
func (l *Loader) Written() int64 { return l.progress.Total() }

// Batches returns the committed fact-row batches.
func (l *Loader) Batches() int64 { return l.progress.Batches() }

// LookupValues returns the committed lookup rows.
func (l *Loader) LookupValues() int64 { return l.lookups }

// Buffered returns the rows waiting for the next flush.
func (l *Loader) Buffered() int { return len(l.buf) }

// Elapsed returns the time since the loader was created.
func (l *Loader) Elapsed() time.Duration { return l.progress.Elapsed() }
