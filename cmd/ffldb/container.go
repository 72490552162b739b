package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"ffldb/internal/config"
	"ffldb/internal/convert"
	"ffldb/internal/datasource"
	"ffldb/internal/datasource/file"
	"ffldb/internal/datasource/httpds"
	"ffldb/internal/parser/ffl"
	"ffldb/internal/storage"
)

// ErrOutputExists reports an existing output file without --overwrite.
var ErrOutputExists = errors.New("output already exists")

// Function variables used to introduce test seams.
var (
	newRepositoryFn = storage.New
	dialectForFn    = storage.DialectFor
)

// convertFile runs one conversion. For sqlite the database is built in a
// temporary file next to the output and renamed into place only on success;
// on any error the temporary file is removed, so a failed run never leaves
// a usable partial database.
func convertFile(ctx context.Context, cfg config.Conversion, log *slog.Logger) (convert.Summary, error) {
	if cfg.Storage.Kind != "sqlite" || cfg.Storage.DB.DSN != "" {
		return convertTo(ctx, cfg, cfg.Storage.DB.DSN, log)
	}

	out := cfg.Output.Path
	_, statErr := os.Stat(out)
	existed := statErr == nil
	if existed && !cfg.Output.Overwrite {
		return convert.Summary{}, fmt.Errorf("%w: %s (use --overwrite)", ErrOutputExists, out)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+"-*.tmp")
	if err != nil {
		return convert.Summary{}, fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	sum, err := convertTo(ctx, cfg, tmpPath, log)
	if err != nil {
		_ = os.Remove(tmpPath)
		return sum, err
	}

	if sum.RecordsWritten == 0 {
		_ = os.Remove(tmpPath)
		if existed {
			if err := os.Remove(out); err != nil {
				return sum, fmt.Errorf("remove output: %w", err)
			}
		}
		log.Warn("no records converted; output not written", "output", out, "lines", sum.LinesRead, "skipped", sum.Skipped)
		return sum, nil
	}

	if err := os.Rename(tmpPath, out); err != nil {
		_ = os.Remove(tmpPath)
		return sum, fmt.Errorf("rename output: %w", err)
	}
	log.Debug("output written", "path", out)
	return sum, nil
}

// sourceFor picks the source for an input argument: an http(s) URL, a local
// path, or "-" for stdin.
func sourceFor(path string) datasource.Source {
	if httpds.IsURL(path) {
		return httpds.NewRemote(path, httpds.NewClient(httpds.Config{
			MaxRetries: 3,
			UserAgent:  "ffldb",
		}))
	}
	return file.NewLocal(path)
}

// convertTo converts cfg.Source into the database at dsn.
func convertTo(ctx context.Context, cfg config.Conversion, dsn string, log *slog.Logger) (convert.Summary, error) {
	layout, err := ffl.New(cfg.Parser.Kind, cfg.Delimiter())
	if err != nil {
		return convert.Summary{}, err
	}
	dialect, err := dialectForFn(cfg.Storage.Kind)
	if err != nil {
		return convert.Summary{}, err
	}

	src, err := datasource.Open(ctx, sourceFor(cfg.Source.Path), cfg.Source.Encoding)
	if err != nil {
		return convert.Summary{}, err
	}
	defer src.Close()

	repo, err := newRepositoryFn(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: dsn})
	if err != nil {
		return convert.Summary{}, fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	log.Info("convert: source",
		"path", cfg.Source.Path,
		"encoding", cfg.Source.Encoding,
		"layout", layout.Name(),
		"storage", cfg.Storage.Kind,
	)
	c := convert.New(repo, dialect, convert.Options{
		Layout:    layout,
		Strict:    cfg.Runtime.Strict,
		BatchSize: cfg.Runtime.BatchSize,
		Job:       cfg.Job,
		Source:    src,
		Logger:    log,
	})
	return c.Convert(ctx, src.Lines())
}

// printSummary writes the human-readable run summary.
func printSummary(w io.Writer, cfg config.Conversion, sum convert.Summary) {
	fmt.Fprintf(w, "lines read:      %s (%s blank)\n", humanize.Comma(sum.LinesRead), humanize.Comma(sum.BlankLines))
	fmt.Fprintf(w, "records written: %s in %d batches\n", humanize.Comma(sum.RecordsWritten), sum.Batches)
	fmt.Fprintf(w, "records skipped: %s\n", humanize.Comma(sum.Skipped))
	for _, reason := range sortedKeys(sum.SkipReasons) {
		fmt.Fprintf(w, "  %-14s %s\n", reason+":", humanize.Comma(sum.SkipReasons[reason]))
	}
	fmt.Fprintln(w, "lookup values:")
	for _, d := range sortedKeys(sum.LookupCounts) {
		fmt.Fprintf(w, "  %-16s %s\n", d+":", humanize.Comma(int64(sum.LookupCounts[d])))
	}
	if sum.InlineBytes > 0 {
		fmt.Fprintf(w, "lookup text:     %s normalized vs %s inline\n",
			humanize.Bytes(uint64(sum.StorageBytes)), humanize.Bytes(uint64(sum.InlineBytes)))
	}
	if cfg.Storage.Kind == "sqlite" && sum.RecordsWritten > 0 {
		if fi, err := os.Stat(cfg.Output.Path); err == nil {
			fmt.Fprintf(w, "output:          %s (%s)\n", cfg.Output.Path, humanize.Bytes(uint64(fi.Size())))
		}
	}
	fmt.Fprintf(w, "elapsed:         %s\n", sum.Duration.Round(time.Millisecond))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
