// Package convert drives one FFLeZCheck conversion end to end:
// read line, parse, normalize, buffer, flush.
//
// Per-line failures (malformed lines, bad dates, repeated license numbers)
// are skipped and counted by default. With Options.Strict set the first such
// failure aborts the run. Schema and persistence errors always abort. An
// aborted run drops the schema it created, committed batches included, so
// the target never holds a partial conversion.
package convert

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"ffldb/internal/loader"
	"ffldb/internal/metrics"
	"ffldb/internal/normalize"
	"ffldb/internal/parser/ffl"
	"ffldb/internal/schema"
	"ffldb/internal/storage"
)

// Skip reasons reported in Summary.SkipReasons.
const (
	ReasonMalformed   = "malformed"
	ReasonInvalidDate = "invalid_date"
	ReasonDuplicate   = "duplicate"
)

// skipSamples is how many skipped lines are logged per reason.
const skipSamples = 3

// ErrDuplicateRecord reports a license number seen on an earlier line.
var ErrDuplicateRecord = errors.New("duplicate license number")

// RecordError is a per-line failure promoted to fatal in strict mode. It
// unwraps to the parser error or ErrDuplicateRecord.
type RecordError struct {
	Line   int
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("convert: line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// SourceStats describes the raw input once it has been read.
// *datasource.Reader satisfies it.
type SourceStats interface {
	Fingerprint() string
	Bytes() int64
}

// Options configures a Converter.
type Options struct {
	// Layout parses each line; nil selects the pipe layout.
	Layout ffl.Layout

	// Strict aborts on the first per-line failure.
	Strict bool

	BatchSize int
	Job       string // metrics job label

	// Source, when set, adds source_xxh3 and source_bytes to the meta table.
	Source SourceStats

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID          string
	LinesRead      int64
	BlankLines     int64
	RecordsWritten int64
	Skipped        int64
	SkipReasons    map[string]int64
	LookupCounts   map[string]int
	Batches        int64
	StorageBytes   int64 // normalized text size, see normalize.StorageBytes
	InlineBytes    int64 // same text stored inline
	Duration       time.Duration
}

// Converter writes one FFLeZCheck export into a fresh schema.
type Converter struct {
	repo    storage.Repository
	dialect storage.Dialect
	opts    Options
}

// newRunID is a seam for tests.
var newRunID = uuid.NewString

// New returns a Converter writing through repo, rendering DDL with dialect.
func New(repo storage.Repository, dialect storage.Dialect, opts Options) *Converter {
	if opts.Layout == nil {
		opts.Layout = ffl.NewDelimited(0)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Converter{repo: repo, dialect: dialect, opts: opts}
}

// run is the state of one Convert call.
type run struct {
	*Converter
	sum     Summary
	norm    *normalize.Normalizer
	loader  *loader.Loader
	seen    map[string]int // license number -> first line
	sampled map[string]int
}

// Convert consumes lines once and returns the run summary. On error the
// schema is dropped again and the summary holds the counts reached before
// the abort.
func (c *Converter) Convert(ctx context.Context, lines iter.Seq2[string, error]) (Summary, error) {
	start := c.opts.Clock.Now()
	r := &run{
		Converter: c,
		sum:       Summary{RunID: newRunID(), SkipReasons: map[string]int64{}},
		norm:      normalize.New(),
		seen:      make(map[string]int),
		sampled:   make(map[string]int),
	}
	r.loader = loader.New(c.repo, r.norm, loader.Options{
		BatchSize: c.opts.BatchSize,
		Job:       c.opts.Job,
		Clock:     c.opts.Clock,
		Logger:    c.opts.Logger,
	})
	log := c.opts.Logger.With("run_id", r.sum.RunID)
	log.Info("convert: start", "layout", c.opts.Layout.Name(), "strict", c.opts.Strict)

	err := r.execute(ctx, lines)
	r.finish(start)
	if err != nil {
		log.Error("convert: failed", "err", err, "lines", r.sum.LinesRead, "written", r.sum.RecordsWritten)
		return r.sum, err
	}
	log.Info("convert: done",
		"lines", r.sum.LinesRead,
		"written", r.sum.RecordsWritten,
		"skipped", r.sum.Skipped,
		"batches", r.sum.Batches,
		"elapsed", r.sum.Duration,
	)
	return r.sum, nil
}

func (r *run) execute(ctx context.Context, lines iter.Seq2[string, error]) (err error) {
	w := schema.NewWriter(r.repo, r.dialect, r.opts.Logger)
	defer func() {
		if err == nil {
			return
		}
		if derr := w.Drop(ctx); derr != nil {
			err = errors.Join(err, fmt.Errorf("convert: %w", derr))
		}
	}()

	stepStart := r.opts.Clock.Now()
	err = w.CreateSchema(ctx)
	metrics.RecordStep(r.opts.Job, "schema", err, r.opts.Clock.Since(stepStart))
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	stepStart = r.opts.Clock.Now()
	err = r.consume(ctx, lines)
	metrics.RecordStep(r.opts.Job, "parse", err, r.opts.Clock.Since(stepStart))
	if err != nil {
		return err
	}

	if err = r.loader.Flush(ctx); err != nil {
		return fmt.Errorf("convert: final flush: %w", err)
	}
	if err = r.loader.WriteMeta(ctx, r.meta()); err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	stepStart = r.opts.Clock.Now()
	err = w.Finalize(ctx)
	metrics.RecordStep(r.opts.Job, "finalize", err, r.opts.Clock.Since(stepStart))
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	return nil
}

func (r *run) consume(ctx context.Context, lines iter.Seq2[string, error]) error {
	lineNo := 0
	for line, err := range lines {
		lineNo++
		if err != nil {
			return fmt.Errorf("convert: read line %d: %w", lineNo, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.sum.LinesRead++

		rec, err := r.opts.Layout.Parse(line)
		if errors.Is(err, ffl.ErrBlankLine) {
			r.sum.BlankLines++
			continue
		}
		if err == nil {
			if first, dup := r.seen[rec.LicenseNumber]; dup {
				err = fmt.Errorf("%w %s (first on line %d)", ErrDuplicateRecord, rec.LicenseNumber, first)
			}
		}
		if err != nil {
			if err := r.skip(lineNo, err); err != nil {
				return err
			}
			continue
		}

		r.seen[rec.LicenseNumber] = lineNo
		rec.Line = lineNo
		n, err := r.norm.Normalize(rec)
		if err != nil {
			return fmt.Errorf("convert: line %d: %w", lineNo, err)
		}
		if err := r.loader.Add(ctx, n); err != nil {
			return fmt.Errorf("convert: %w", err)
		}
	}
	return nil
}

// skip counts a per-line failure, or returns it as a *RecordError in strict
// mode. Errors that are not per-line failures are returned unchanged.
func (r *run) skip(line int, err error) error {
	reason := reasonFor(err)
	if reason == "" {
		return fmt.Errorf("convert: line %d: %w", line, err)
	}
	if r.opts.Strict {
		return &RecordError{Line: line, Reason: reason, Err: err}
	}
	r.sum.Skipped++
	r.sum.SkipReasons[reason]++
	if r.sampled[reason] < skipSamples {
		r.sampled[reason]++
		r.opts.Logger.Warn("convert: skipped line", "line", line, "reason", reason, "err", err)
	}
	return nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ffl.ErrMalformedRecord):
		return ReasonMalformed
	case errors.Is(err, ffl.ErrInvalidDate):
		return ReasonInvalidDate
	case errors.Is(err, ErrDuplicateRecord):
		return ReasonDuplicate
	default:
		return ""
	}
}

func (r *run) meta() map[string]string {
	m := map[string]string{
		"schema_version": strconv.Itoa(schema.Version),
		"run_id":         r.sum.RunID,
		"built_at":       r.opts.Clock.Now().UTC().Format(time.RFC3339),
		"records":        strconv.FormatInt(r.loader.Written(), 10),
		"skipped":        strconv.FormatInt(r.sum.Skipped, 10),
	}
	if src := r.opts.Source; src != nil {
		m["source_xxh3"] = src.Fingerprint()
		m["source_bytes"] = strconv.FormatInt(src.Bytes(), 10)
	}
	return m
}

// finish copies loader and normalizer totals into the summary and reports
// row metrics.
func (r *run) finish(start time.Time) {
	r.sum.RecordsWritten = r.loader.Written()
	r.sum.Batches = r.loader.Batches()
	r.sum.StorageBytes = r.norm.StorageBytes()
	r.sum.InlineBytes = r.norm.InlineBytes()
	r.sum.LookupCounts = make(map[string]int, len(normalize.Domains))
	for d, n := range r.norm.Counts() {
		r.sum.LookupCounts[string(d)] = n
	}
	r.sum.Duration = r.opts.Clock.Since(start)

	metrics.RecordRow(r.opts.Job, "read", r.sum.LinesRead)
	metrics.RecordRow(r.opts.Job, "blank", r.sum.BlankLines)
	for reason, n := range r.sum.SkipReasons {
		metrics.RecordRow(r.opts.Job, "skipped_"+reason, n)
	}
}
