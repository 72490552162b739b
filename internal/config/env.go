package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FFLDB_"

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides c from FFLDB_* variables found by lookup. A nil lookup
// uses os.LookupEnv.
func ApplyEnv(c *Conversion, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("JOB", &c.Job)
	str("INPUT", &c.Source.Path)
	str("ENCODING", &c.Source.Encoding)
	str("LAYOUT", &c.Parser.Kind)
	str("STORAGE", &c.Storage.Kind)
	str("DSN", &c.Storage.DB.DSN)
	str("OUTPUT", &c.Output.Path)
	str("METRICS_BACKEND", &c.Metrics.Backend)
	str("PUSHGATEWAY_URL", &c.Metrics.PushgatewayURL)
	str("DATADOG_ADDR", &c.Metrics.DatadogAddr)
	str("DATADOG_NAMESPACE", &c.Metrics.DatadogNamespace)

	if v, ok := lookup(EnvPrefix + "DELIMITER"); ok && v != "" {
		if c.Parser.Options == nil {
			c.Parser.Options = Options{}
		}
		c.Parser.Options["delimiter"] = v
	}
	if v, ok := lookup(EnvPrefix + "BATCH_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sBATCH_SIZE=%q: %w", EnvPrefix, v, err)
		}
		c.Runtime.BatchSize = n
	}
	for name, dst := range map[string]*bool{
		"STRICT":    &c.Runtime.Strict,
		"OVERWRITE": &c.Output.Overwrite,
	} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = b
	}
	return nil
}
