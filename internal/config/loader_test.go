package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/graphkb/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: trace
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_NegativePoolMaxRejected(t *testing.T) {
	t.Parallel()
	yaml := `
embeddings:
  name: openai
  pool_max: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative pool_max, got nil")
	}
	if !strings.Contains(err.Error(), "pool_max") {
		t.Errorf("error should mention pool_max, got: %v", err)
	}
}

func TestValidate_NegativeTimeoutsRejected(t *testing.T) {
	t.Parallel()
	yaml := `
timeouts:
  connector_timeout_ms: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative timeout, got nil")
	}
	if !strings.Contains(err.Error(), "connector_timeout_ms") {
		t.Errorf("error should mention connector_timeout_ms, got: %v", err)
	}
}

func TestValidate_MultipleErrorsAccumulate(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: trace
embeddings:
  pool_max: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") || !strings.Contains(errStr, "pool_max") {
		t.Errorf("error should mention both log_level and pool_max, got: %v", err)
	}
}

func TestValidate_MinimalConfigIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
graph:
  uri: "postgres://localhost/test"
embeddings:
  name: ollama
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadFromReader_EmptyInputIsValid(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	found := false
	for _, n := range config.ValidProviderNames {
		if n == "openai" {
			found = true
		}
	}
	if !found {
		t.Error(`ValidProviderNames should contain "openai"`)
	}
}

func TestApplyEnvOverrides_GraphURI(t *testing.T) {
	t.Setenv("GRAPH_URI", "postgres://env-override/test")
	cfg, err := config.LoadFromReader(strings.NewReader(`
graph:
  uri: "postgres://yaml-value/test"
embeddings:
  name: openai
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Graph.URI != "postgres://env-override/test" {
		t.Errorf("graph.uri = %q, want env override", cfg.Graph.URI)
	}
}

func TestApplyEnvOverrides_EmbeddingPoolMax(t *testing.T) {
	t.Setenv("EMBEDDING_POOL_MAX", "16")
	cfg, err := config.LoadFromReader(strings.NewReader(`
embeddings:
  name: openai
  pool_max: 4
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embeddings.PoolMax != 16 {
		t.Errorf("embeddings.pool_max = %d, want 16 (env override)", cfg.Embeddings.PoolMax)
	}
}
