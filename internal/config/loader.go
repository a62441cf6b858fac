package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known embeddings provider names. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{"openai", "ollama"}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. It is a convenience wrapper
// around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers the twelve-factor environment variables named in
// spec §6 on top of whatever the YAML file set. An unset environment
// variable leaves the YAML-provided value untouched.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("GRAPH_URI"); ok {
		cfg.Graph.URI = v
	}
	if v, ok := os.LookupEnv("GRAPH_USER"); ok {
		cfg.Graph.User = v
	}
	if v, ok := os.LookupEnv("GRAPH_PASSWORD"); ok {
		cfg.Graph.Password = v
	}
	if v, ok := os.LookupEnv("GRAPH_DATABASE"); ok {
		cfg.Graph.Database = v
	}
	if v, ok := os.LookupEnv("EMBEDDING_POOL_MAX"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.PoolMax = n
		} else {
			slog.Warn("EMBEDDING_POOL_MAX is not a valid integer, ignoring", "value", v)
		}
	}
	if v, ok := os.LookupEnv("CONNECTOR_TIMEOUT_MS"); ok {
		setMillis(&cfg.Timeouts.ConnectorMS, "CONNECTOR_TIMEOUT_MS", v)
	}
	if v, ok := os.LookupEnv("EMBED_TIMEOUT_MS"); ok {
		setMillis(&cfg.Timeouts.EmbedMS, "EMBED_TIMEOUT_MS", v)
	}
	if v, ok := os.LookupEnv("DOC_TIMEOUT_MS"); ok {
		setMillis(&cfg.Timeouts.DocMS, "DOC_TIMEOUT_MS", v)
	}
	if v, ok := os.LookupEnv("RUN_HISTORY_MAX"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runs.HistoryMax = n
		} else {
			slog.Warn("RUN_HISTORY_MAX is not a valid integer, ignoring", "value", v)
		}
	}
}

func setMillis(field *int, name, raw string) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn(name+" is not a valid integer, ignoring", "value", raw)
		return
	}
	*field = n
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName(cfg.Embeddings.Name)

	if cfg.Embeddings.Name == "" {
		slog.Warn("embeddings.name is empty; ingestion will be unable to embed node text")
	}
	if cfg.Embeddings.PoolMax < 0 {
		errs = append(errs, fmt.Errorf("embeddings.pool_max %d must be >= 0", cfg.Embeddings.PoolMax))
	}

	if cfg.Timeouts.ConnectorMS < 0 {
		errs = append(errs, fmt.Errorf("timeouts.connector_timeout_ms %d must be >= 0", cfg.Timeouts.ConnectorMS))
	}
	if cfg.Timeouts.EmbedMS < 0 {
		errs = append(errs, fmt.Errorf("timeouts.embed_timeout_ms %d must be >= 0", cfg.Timeouts.EmbedMS))
	}
	if cfg.Timeouts.DocMS < 0 {
		errs = append(errs, fmt.Errorf("timeouts.doc_timeout_ms %d must be >= 0", cfg.Timeouts.DocMS))
	}

	if cfg.Runs.HistoryMax < 0 {
		errs = append(errs, fmt.Errorf("runs.history_max %d must be >= 0", cfg.Runs.HistoryMax))
	}

	if cfg.Graph.URI == "" && cfg.Graph.Database == "" {
		slog.Warn("graph.uri and graph.database are both empty; the graph store will fail to connect")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown embeddings provider name — may be a typo or third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}
