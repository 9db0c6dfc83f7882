// Package config loads orchestrator configuration from a YAML file, merged
// with defaults and environment variable overrides, the way the teacher's
// internal/config package does it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig selects and configures the Agent Provider backend.
type ProviderConfig struct {
	Kind string `yaml:"kind"` // "anthropic" or "cli"

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	MaxTokens       int64  `yaml:"max_tokens"`

	CLIPath    string        `yaml:"cli_path"`
	CLITimeout time.Duration `yaml:"cli_timeout"`

	MaxIterations int `yaml:"max_iterations"`
}

// StoreConfig selects and configures the durable store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "memory", "sqlite" or "redis"

	SQLitePath string `yaml:"sqlite_path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPrefix   string `yaml:"redis_prefix"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// A2AConfig configures the A2A JSON-RPC HTTP surface.
type A2AConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// TimeoutConfig holds timeout settings. Model is checked by Validate; no
// component applies it to model calls.
type TimeoutConfig struct {
	Model time.Duration `yaml:"model"`
}

// Config is the orchestrator's full configuration surface.
type Config struct {
	WorkspaceRoot  string `yaml:"workspace_root"`
	MaxWaves       int    `yaml:"max_waves"`
	MaxParallelism int    `yaml:"max_parallelism"`

	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`

	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Provider ProviderConfig `yaml:"provider"`
	Store    StoreConfig    `yaml:"store"`
	A2A      A2AConfig      `yaml:"a2a"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		WorkspaceRoot:  ".",
		MaxWaves:       3,
		MaxParallelism: 3,
		LogLevel:       "info",
		LogDir:         ".orchestra/logs",
		Timeouts: TimeoutConfig{
			Model: 60 * time.Second,
		},
		Provider: ProviderConfig{
			Kind:          "anthropic",
			AnthropicModel: "claude-sonnet-4-5",
			MaxTokens:     4096,
			CLIPath:       "claude",
			CLITimeout:    5 * time.Minute,
			MaxIterations: 10,
		},
		Store: StoreConfig{
			Backend:     "memory",
			SQLitePath:  ".orchestra/orchestra.db",
			RedisPrefix: "orchestra",
		},
		A2A: A2AConfig{
			ListenAddr:  ":8787",
			CORSOrigins: []string{"*"},
		},
	}
}

// applyEnvOverrides applies environment variable overrides, taking
// precedence over both defaults and the config file.
//
// Recognized variables:
//   - ORCHESTRA_WORKSPACE_ROOT
//   - ORCHESTRA_MAX_WAVES
//   - ORCHESTRA_MAX_PARALLELISM
//   - ORCHESTRA_LOG_LEVEL
//   - ORCHESTRA_PROVIDER_KIND
//   - ORCHESTRA_ANTHROPIC_API_KEY
//   - ORCHESTRA_STORE_BACKEND
//   - ORCHESTRA_A2A_LISTEN_ADDR
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORCHESTRA_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("ORCHESTRA_MAX_WAVES"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.MaxWaves = n
		}
	}
	if v := os.Getenv("ORCHESTRA_MAX_PARALLELISM"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.MaxParallelism = n
		}
	}
	if v := os.Getenv("ORCHESTRA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ORCHESTRA_PROVIDER_KIND"); v != "" {
		cfg.Provider.Kind = v
	}
	if v := os.Getenv("ORCHESTRA_ANTHROPIC_API_KEY"); v != "" {
		cfg.Provider.AnthropicAPIKey = v
	}
	if v := os.Getenv("ORCHESTRA_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("ORCHESTRA_A2A_LISTEN_ADDR"); v != "" {
		cfg.A2A.ListenAddr = v
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}

// LoadConfig loads configuration from path, merged over defaults. A missing
// file is not an error: defaults (plus env overrides) are returned as-is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the configuration's invariants.
func (c *Config) Validate() error {
	if c.MaxWaves <= 0 {
		return fmt.Errorf("max_waves must be > 0, got %d", c.MaxWaves)
	}
	if c.MaxParallelism <= 0 {
		return fmt.Errorf("max_parallelism must be > 0, got %d", c.MaxParallelism)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	switch c.Provider.Kind {
	case "anthropic":
		if c.Provider.AnthropicAPIKey == "" {
			return fmt.Errorf("provider.anthropic_api_key is required when provider.kind is 'anthropic'")
		}
	case "cli":
		if strings.TrimSpace(c.Provider.CLIPath) == "" {
			return fmt.Errorf("provider.cli_path is required when provider.kind is 'cli'")
		}
	default:
		return fmt.Errorf("provider.kind must be 'anthropic' or 'cli', got %q", c.Provider.Kind)
	}

	switch c.Store.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("store.backend must be 'memory', 'sqlite' or 'redis', got %q", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && strings.TrimSpace(c.Store.SQLitePath) == "" {
		return fmt.Errorf("store.sqlite_path is required when store.backend is 'sqlite'")
	}
	if c.Store.Backend == "redis" && strings.TrimSpace(c.Store.RedisAddr) == "" {
		return fmt.Errorf("store.redis_addr is required when store.backend is 'redis'")
	}

	if c.Timeouts.Model < 0 {
		return fmt.Errorf("timeouts.model must be >= 0, got %v", c.Timeouts.Model)
	}

	return nil
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil flag
// values override configuration values.
func (c *Config) MergeWithFlags(workspaceRoot *string, maxWaves, maxParallelism *int, providerKind *string) {
	if workspaceRoot != nil {
		c.WorkspaceRoot = *workspaceRoot
	}
	if maxWaves != nil {
		c.MaxWaves = *maxWaves
	}
	if maxParallelism != nil {
		c.MaxParallelism = *maxParallelism
	}
	if providerKind != nil {
		c.Provider.Kind = *providerKind
	}
}
