package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"ffldb/internal/datasource"
	"ffldb/internal/datasource/httpds"
	"ffldb/internal/parser/ffl"
)

// IssueSeverity is how a finding affects the run.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "parser.options.delimiter"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateConversion performs static validation of c without mutating it.
// Callers decide whether warnings are fatal.
func ValidateConversion(c Conversion) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateParser(c.Parser)...)
	issues = append(issues, validateStorage(c.Storage, c.Output)...)
	issues = append(issues, validateRuntime(c.Runtime)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.path",
			Message:  "an input path is required",
		})
	}
	if httpds.IsURL(s.Path) {
		if u, err := url.Parse(s.Path); err != nil || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.path",
				Message:  fmt.Sprintf("invalid input URL %q", s.Path),
			})
		}
	}
	if _, err := datasource.Decoder(s.Encoding); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.encoding",
			Message:  fmt.Sprintf("unsupported encoding %q; use one of %s", s.Encoding, strings.Join(datasource.Encodings(), ", ")),
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if !slices.Contains(ffl.Layouts(), strings.ToLower(strings.TrimSpace(p.Kind))) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown layout %q; use one of %s", p.Kind, strings.Join(ffl.Layouts(), ", ")),
		})
		return issues
	}

	delim := p.Options.String("delimiter", "|")
	switch {
	case utf8.RuneCountInString(delim) != 1:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.delimiter",
			Message:  fmt.Sprintf("delimiter %q must be a single character", delim),
		})
	case p.Kind == ffl.LayoutATF && delim != "|":
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.delimiter",
			Message:  "delimiter is ignored by the fixed-width atf layout",
		})
	}
	return issues
}

func validateStorage(s Storage, out Output) []Issue {
	var issues []Issue

	switch s.Kind {
	case "sqlite":
		if strings.TrimSpace(out.Path) == "" && strings.TrimSpace(s.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.path",
				Message:  "sqlite storage needs an output path",
			})
		}
	case "postgres":
		if strings.TrimSpace(s.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.db.dsn",
				Message:  "postgres storage requires a DSN",
			})
		}
		if out.Overwrite {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "output.overwrite",
				Message:  "overwrite only applies to sqlite output files; postgres objects are never dropped",
			})
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	if r.BatchSize > 0 {
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Path:     "runtime.batch_size",
		Message:  fmt.Sprintf("batch_size=%d; the loader default will be used", r.BatchSize),
	}}
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires a URL",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires a DogStatsD address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}
