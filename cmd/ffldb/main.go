// Command ffldb converts an ATF FFLeZCheck export into a normalized
// relational database.
//
//	ffldb [flags] INPUT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"ffldb/internal/config"
	"ffldb/internal/convert"
	"ffldb/internal/logger"
	"ffldb/internal/metrics"
	"ffldb/internal/metrics/datadog"
	"ffldb/internal/metrics/prompush"
	"ffldb/internal/storage"

	// register the storage backends and their DDL dialects.
	_ "ffldb/internal/storage/postgres"
	_ "ffldb/internal/storage/sqlite"
)

// Exit codes.
const (
	exitOK     = 0
	exitFatal  = 1
	exitStrict = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, converts, prints the summary to stdout and returns the
// process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ffldb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: ffldb [flags] INPUT\n\n")
		fs.PrintDefaults()
	}

	cfgPath := fs.String("config", "", "run config file (.json, .yaml or .yml)")
	envFile := fs.String("env-file", ".env", "optional .env file with FFLDB_* variables")
	output := fs.StringP("output", "o", "output.db", "output database file (sqlite)")
	layout := fs.String("layout", "pipe", "input layout: pipe or atf")
	encoding := fs.String("encoding", "utf-8", "input encoding: utf-8, windows-1252 or iso-8859-1")
	delimiter := fs.String("delimiter", "|", "field delimiter for the pipe layout")
	storageKind := fs.String("storage", "sqlite", "storage backend: "+strings.Join(storage.ListKinds(), ", "))
	dsn := fs.String("dsn", "", "database DSN (required for postgres)")
	batchSize := fs.Int("batch-size", 5000, "fact rows per transaction")
	strict := fs.Bool("strict", false, "abort on the first malformed, invalid-date or duplicate line")
	overwrite := fs.Bool("overwrite", false, "replace an existing output file")
	metricsBackend := fs.String("metrics-backend", "none", "metrics backend: none, pushgateway or datadog")
	pushURL := fs.String("pushgateway-url", "", "Pushgateway base URL")
	ddAddr := fs.String("datadog-addr", "", "DogStatsD address")
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	verbose := fs.BoolP("verbose", "v", false, "enable verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	// Layering: defaults, config file, .env + environment, flags.
	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFatal
		}
	}
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	for _, f := range []struct {
		name     string
		dst, val *string
	}{
		{"output", &cfg.Output.Path, output},
		{"layout", &cfg.Parser.Kind, layout},
		{"encoding", &cfg.Source.Encoding, encoding},
		{"storage", &cfg.Storage.Kind, storageKind},
		{"dsn", &cfg.Storage.DB.DSN, dsn},
		{"metrics-backend", &cfg.Metrics.Backend, metricsBackend},
		{"pushgateway-url", &cfg.Metrics.PushgatewayURL, pushURL},
		{"datadog-addr", &cfg.Metrics.DatadogAddr, ddAddr},
	} {
		if fs.Changed(f.name) {
			*f.dst = *f.val
		}
	}
	if fs.Changed("delimiter") {
		cfg.Parser.Options["delimiter"] = *delimiter
	}
	if fs.Changed("batch-size") {
		cfg.Runtime.BatchSize = *batchSize
	}
	if fs.Changed("strict") {
		cfg.Runtime.Strict = *strict
	}
	if fs.Changed("overwrite") {
		cfg.Output.Overwrite = *overwrite
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return exitFatal
	}
	if fs.NArg() == 1 {
		cfg.Source.Path = fs.Arg(0)
	}

	issues := config.ValidateConversion(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "Configuration is invalid")
		return exitFatal
	}
	if *validate {
		fmt.Fprintln(stdout, "Configuration is valid")
		return exitOK
	}

	log := logger.New(stderr, *verbose)
	defer setupMetrics(cfg, log)()

	sum, err := convertFile(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	printSummary(stdout, cfg, sum)
	return exitOK
}

// exitCode maps a conversion error to the process exit code.
func exitCode(err error) int {
	var re *convert.RecordError
	if errors.As(err, &re) {
		return exitStrict
	}
	return exitFatal
}

// setupMetrics installs the configured backend and returns the function
// that flushes it at exit. Backend errors disable metrics instead of
// failing the run.
func setupMetrics(cfg config.Conversion, log *slog.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  cfg.Metrics.DatadogNamespace,
			GlobalTags: []string{"job:" + cfg.Job},
		})
	case "", "none":
		log.Debug("metrics: disabled")
		return func() {}
	default:
		log.Warn("metrics: unknown backend; metrics disabled", "backend", cfg.Metrics.Backend)
		return func() {}
	}
	if err != nil {
		log.Warn("metrics: backend init failed; using nop", "backend", cfg.Metrics.Backend, "err", err)
		return func() {}
	}

	log.Info("metrics: enabled", "backend", cfg.Metrics.Backend, "job", cfg.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush error", "err", err)
		}
	}
}
