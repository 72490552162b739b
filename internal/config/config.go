// Package config defines the JSON/YAML-serializable configuration of one
// conversion run.
//
// Values are resolved in layers: Default, then a config file (Load), then
// FFLDB_* environment variables (ApplyEnv, optionally seeded from a .env
// file), then command-line flags applied by the caller.
//
// Example (YAML):
//
//	job: ffldb
//	source:  { path: 0125-ffl-list.txt, encoding: windows-1252 }
//	parser:  { kind: atf }
//	storage: { kind: sqlite }
//	output:  { path: ffl.db, overwrite: true }
//	runtime: { batch_size: 5000, strict: false }
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Conversion is the top-level run configuration.
type Conversion struct {
	// Job labels metrics and logs for this run.
	Job string `json:"job" yaml:"job"`

	Source  Source        `json:"source" yaml:"source"`
	Parser  Parser        `json:"parser" yaml:"parser"`
	Storage Storage       `json:"storage" yaml:"storage"`
	Output  Output        `json:"output" yaml:"output"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Metrics Metrics       `json:"metrics" yaml:"metrics"`
}

// Source describes the input export.
type Source struct {
	// Path is the FFLeZCheck file; "-" reads standard input.
	Path string `json:"path" yaml:"path"`

	// Encoding is utf-8, windows-1252 or iso-8859-1.
	Encoding string `json:"encoding" yaml:"encoding"`
}

// Parser selects the line layout.
type Parser struct {
	// Kind is the layout name: "pipe" or "atf".
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the layout. The pipe layout reads
	// "delimiter" (string, default "|").
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the database backend.
type Storage struct {
	// Kind is "sqlite" or "postgres".
	Kind string `json:"kind" yaml:"kind"`

	DB DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the database connection.
type DBConfig struct {
	// DSN is the pgx connection string for postgres. For sqlite it is
	// derived from Output.Path and may be left empty.
	DSN string `json:"dsn" yaml:"dsn"`
}

// Output controls the database file produced by the sqlite backend.
type Output struct {
	Path string `json:"path" yaml:"path"`

	// Overwrite replaces an existing file. Without it an existing output is
	// a conflict.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`
}

// RuntimeConfig controls batching and the per-line error policy.
type RuntimeConfig struct {
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Strict aborts on the first malformed, invalid-date or duplicate line
	// instead of skipping it.
	Strict bool `json:"strict" yaml:"strict"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend string `json:"backend" yaml:"backend"`

	PushgatewayURL   string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr      string `json:"datadog_addr" yaml:"datadog_addr"`
	DatadogNamespace string `json:"datadog_namespace" yaml:"datadog_namespace"`
}

// Default returns the configuration used when nothing else is set.
func Default() Conversion {
	return Conversion{
		Job:     "ffldb",
		Source:  Source{Encoding: "utf-8"},
		Parser:  Parser{Kind: "pipe", Options: Options{}},
		Storage: Storage{Kind: "sqlite"},
		Output:  Output{Path: "output.db"},
		Runtime: RuntimeConfig{BatchSize: 5000},
		Metrics: Metrics{Backend: "none"},
	}
}

// Load reads path over Default. Files ending in .yaml or .yml are YAML;
// everything else is JSON. Unknown keys are rejected in both.
func Load(path string) (Conversion, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: read: %w", err)
	}
	if err := Decode(b, filepath.Ext(path), &c); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Decode decodes b into c, keeping fields b does not mention. ext selects
// the format as in Load.
func Decode(b []byte, ext string, c *Conversion) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	}
	if c.Parser.Options == nil {
		c.Parser.Options = Options{}
	}
	return nil
}

// Delimiter returns the pipe layout delimiter, '|' when unset.
func (c Conversion) Delimiter() rune { return c.Parser.Options.Rune("delimiter", '|') }

// DSN returns the storage DSN. The sqlite backend writes to path unless an
// explicit DSN is configured.
func (c Conversion) DSN(path string) string {
	if c.Storage.Kind == "sqlite" && c.Storage.DB.DSN == "" {
		return path
	}
	return c.Storage.DB.DSN
}

// Options is a small helper to fetch typed values from free-form maps
// decoded from JSON or YAML. It performs only minimal type coercion and
// returns the provided default when a key is absent or of an unexpected
// type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON decodes a missing or null "options" object to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
