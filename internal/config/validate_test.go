package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validConversion() Conversion {
	c := Default()
	c.Source.Path = "ffl.txt"
	return c
}

func TestValidateConversion_ValidDefault(t *testing.T) {
	t.Parallel()

	if issues := ValidateConversion(validConversion()); len(issues) != 0 {
		t.Fatalf("ValidateConversion() = %+v, want no issues", issues)
	}
}

func TestValidateConversion_Issues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(c *Conversion)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing_job", func(c *Conversion) { c.Job = " " }, SeverityError, "job", "must not be empty"},
		{"missing_input", func(c *Conversion) { c.Source.Path = "" }, SeverityError, "source.path", "input path"},
		{"url_without_host", func(c *Conversion) { c.Source.Path = "https:///ffl.txt" }, SeverityError, "source.path", "invalid input URL"},
		{"bad_encoding", func(c *Conversion) { c.Source.Encoding = "utf-16" }, SeverityError, "source.encoding", "utf-16"},
		{"bad_layout", func(c *Conversion) { c.Parser.Kind = "csv" }, SeverityError, "parser.kind", "unknown layout"},
		{"long_delimiter", func(c *Conversion) { c.Parser.Options = Options{"delimiter": "||"} }, SeverityError, "parser.options.delimiter", "single character"},
		{"atf_delimiter", func(c *Conversion) {
			c.Parser.Kind = "atf"
			c.Parser.Options = Options{"delimiter": ","}
		}, SeverityWarning, "parser.options.delimiter", "ignored"},
		{"sqlite_no_output", func(c *Conversion) { c.Output.Path = "" }, SeverityError, "output.path", "output path"},
		{"postgres_no_dsn", func(c *Conversion) { c.Storage.Kind = "postgres" }, SeverityError, "storage.db.dsn", "requires a DSN"},
		{"postgres_overwrite", func(c *Conversion) {
			c.Storage = Storage{Kind: "postgres", DB: DBConfig{DSN: "postgresql://localhost/ffl"}}
			c.Output.Overwrite = true
		}, SeverityWarning, "output.overwrite", "only applies"},
		{"empty_storage", func(c *Conversion) { c.Storage.Kind = "" }, SeverityError, "storage.kind", "must not be empty"},
		{"unknown_storage", func(c *Conversion) { c.Storage.Kind = "mssql" }, SeverityWarning, "storage.kind", "unknown storage kind"},
		{"zero_batch", func(c *Conversion) { c.Runtime.BatchSize = 0 }, SeverityWarning, "runtime.batch_size", "batch_size=0"},
		{"pushgateway_no_url", func(c *Conversion) { c.Metrics.Backend = "pushgateway" }, SeverityError, "metrics.pushgateway_url", "requires a URL"},
		{"datadog_no_addr", func(c *Conversion) { c.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "DogStatsD"},
		{"unknown_metrics", func(c *Conversion) { c.Metrics.Backend = "graphite" }, SeverityWarning, "metrics.backend", "disabled"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := validConversion()
			tc.mutate(&c)
			issues := ValidateConversion(c)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.msg, issues)
			}
			if got, want := HasErrors(issues), tc.sev == SeverityError; got != want {
				t.Fatalf("HasErrors() = %v, want %v", got, want)
			}
		})
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityWarning, Path: "runtime.batch_size", Message: "too small"}
	if got, want := iss.Error(), "warning at runtime.batch_size: too small"; got != want {
		t.Fatalf("Issue.Error() = %q, want %q", got, want)
	}
}
