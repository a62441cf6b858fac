// Package config provides the configuration schema, loader, and provider
// registry for the ingestion orchestrator.
package config

import "time"

// Config is the root configuration structure for the orchestrator. It is
// typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Graph      GraphConfig      `yaml:"graph"`
	Embeddings ProviderEntry    `yaml:"embeddings"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Runs       RunManagerConfig `yaml:"runs"`
}

// ServerConfig holds network and logging settings for the orchestrator's
// HTTP surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated logging verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	default:
		return false
	}
}

// GraphConfig holds connection settings for the PostgreSQL/pgvector graph
// store (GRAPH_URI, GRAPH_USER, GRAPH_PASSWORD, GRAPH_DATABASE).
type GraphConfig struct {
	// URI is a full PostgreSQL connection string. When set, it takes
	// precedence over Host/Port/User/Password/Database below.
	URI string `yaml:"uri"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ProviderEntry configures a named embeddings provider. The Name field is
// used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation ("openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.,
	// "text-embedding-3-small", "nomic-embed-text").
	Model string `yaml:"model"`

	// PoolMax bounds concurrent calls to this provider (EMBEDDING_POOL_MAX).
	// Zero means use embedpipeline's default.
	PoolMax int `yaml:"pool_max"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// TimeoutsConfig holds per-I/O timeouts, expressed in milliseconds in YAML
// (CONNECTOR_TIMEOUT_MS, EMBED_TIMEOUT_MS, DOC_TIMEOUT_MS).
type TimeoutsConfig struct {
	ConnectorMS int `yaml:"connector_timeout_ms"`
	EmbedMS     int `yaml:"embed_timeout_ms"`
	DocMS       int `yaml:"doc_timeout_ms"`
}

// Connector returns the configured connector pull timeout, defaulting to 60s.
func (t TimeoutsConfig) Connector() time.Duration {
	if t.ConnectorMS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(t.ConnectorMS) * time.Millisecond
}

// Embed returns the configured embedding call timeout, defaulting to 30s.
func (t TimeoutsConfig) Embed() time.Duration {
	if t.EmbedMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.EmbedMS) * time.Millisecond
}

// Document returns the configured per-document soft timeout, defaulting to 120s.
func (t TimeoutsConfig) Document() time.Duration {
	if t.DocMS <= 0 {
		return 120 * time.Second
	}
	return time.Duration(t.DocMS) * time.Millisecond
}

// RunManagerConfig holds run-history retention settings (RUN_HISTORY_MAX).
type RunManagerConfig struct {
	// HistoryMax is terminal runs retained per KB. Zero means use
	// runmanager's default.
	HistoryMax int `yaml:"history_max"`
}
