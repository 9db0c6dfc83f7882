package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxWaves != 3 {
		t.Errorf("MaxWaves = %d, want 3", cfg.MaxWaves)
	}
	if cfg.MaxParallelism != 3 {
		t.Errorf("MaxParallelism = %d, want 3", cfg.MaxParallelism)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Provider.Kind != "anthropic" {
		t.Errorf("Provider.Kind = %q, want %q", cfg.Provider.Kind, "anthropic")
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, "memory")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected default config to fail validation without an API key")
	}
}

func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `max_waves: 5
max_parallelism: 2
log_level: debug
provider:
  kind: cli
  cli_path: claude
store:
  backend: sqlite
  sqlite_path: ./data.db
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxWaves != 5 {
		t.Errorf("MaxWaves = %d, want 5", cfg.MaxWaves)
	}
	if cfg.MaxParallelism != 2 {
		t.Errorf("MaxParallelism = %d, want 2", cfg.MaxParallelism)
	}
	if cfg.Provider.Kind != "cli" {
		t.Errorf("Provider.Kind = %q, want cli", cfg.Provider.Kind)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	// Fields not present in the file keep their defaults.
	if cfg.A2A.ListenAddr != ":8787" {
		t.Errorf("A2A.ListenAddr = %q, want default", cfg.A2A.ListenAddr)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxWaves != 3 {
		t.Errorf("expected default MaxWaves, got %d", cfg.MaxWaves)
	}
}

func TestLoadConfigMalformedFileErrors(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("not: [valid yaml"), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}

func TestValidateRejectsUnknownProviderKind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Kind = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown provider kind")
	}
}

func TestValidateRejectsSQLiteWithoutPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.AnthropicAPIKey = "sk-test"
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for sqlite backend without a path")
	}
}

func TestMergeWithFlagsOverridesOnlyNonNil(t *testing.T) {
	cfg := DefaultConfig()
	waves := 7
	cfg.MergeWithFlags(nil, &waves, nil, nil)
	if cfg.MaxWaves != 7 {
		t.Errorf("MaxWaves = %d, want 7", cfg.MaxWaves)
	}
	if cfg.MaxParallelism != 3 {
		t.Errorf("MaxParallelism changed unexpectedly to %d", cfg.MaxParallelism)
	}
}

func TestEnvOverrideTakesPrecedence(t *testing.T) {
	t.Setenv("ORCHESTRA_MAX_WAVES", "9")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxWaves != 9 {
		t.Errorf("MaxWaves = %d, want 9 from env override", cfg.MaxWaves)
	}
}
