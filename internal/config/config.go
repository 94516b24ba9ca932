// Package config loads the immutable pipeline configuration. The
// configuration object is constructed once (file + defaults + credential
// resolution) and passed explicitly into the orchestrator; nothing reads
// ambient process state after load.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied during validation.
const (
	DefaultMergeThreshold    = 0.5
	DefaultMaxRetries        = 3
	DefaultPerCallTimeout    = 30 * time.Second
	DefaultManuscriptWorkers = 4
	DefaultExtractionWorkers = 4
)

// Duration wraps time.Duration for YAML fields like "30s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// OracleConfig selects and configures the analysis oracle.
type OracleConfig struct {
	Kind      string `yaml:"kind"`                  // "lexical" (default) or "remote"
	Endpoint  string `yaml:"endpoint,omitempty"`    // remote only
	Model     string `yaml:"model,omitempty"`       // remote only
	APIKeyEnv string `yaml:"api_key_env,omitempty"` // env var holding the remote API key

	// APIKey is resolved from APIKeyEnv once during Load; never re-read.
	APIKey string `yaml:"-"`
}

// ResolverConfig holds the dedup engine settings.
type ResolverConfig struct {
	SimilarityMergeThreshold *float64 `yaml:"similarity_merge_threshold,omitempty"`
}

// OrchestratorConfig holds retry and parallelism settings.
type OrchestratorConfig struct {
	MaxRetries        *int     `yaml:"max_retries,omitempty"`
	PerCallTimeout    Duration `yaml:"per_call_timeout,omitempty"`
	ManuscriptWorkers int      `yaml:"manuscript_workers,omitempty"`
	ExtractionWorkers int      `yaml:"extraction_workers,omitempty"`
}

// RedisConfig enables persisting results to the brief board.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Instance string `yaml:"instance"`
}

// Config is the top-level peerlens.yml configuration.
type Config struct {
	Version      string             `yaml:"version"`
	Oracle       OracleConfig       `yaml:"oracle"`
	Resolver     ResolverConfig     `yaml:"resolver"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Taxonomy     []string           `yaml:"category_taxonomy,omitempty"`
	Redis        *RedisConfig       `yaml:"redis,omitempty"`
}

// Default returns a validated configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{Version: "1.0"}
	// Validate never fails on the zero-value config; it only applies defaults.
	_ = cfg.Validate()
	return cfg
}

// Validate performs strict validation and applies defaults for unset fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	switch c.Oracle.Kind {
	case "":
		c.Oracle.Kind = "lexical"
	case "lexical":
	case "remote":
		if c.Oracle.Endpoint == "" {
			return fmt.Errorf("oracle.endpoint is required for the remote oracle")
		}
		if c.Oracle.APIKeyEnv == "" {
			return fmt.Errorf("oracle.api_key_env is required for the remote oracle")
		}
	default:
		return fmt.Errorf("unknown oracle kind: %s (must be 'lexical' or 'remote')", c.Oracle.Kind)
	}

	if c.Resolver.SimilarityMergeThreshold == nil {
		threshold := float64(DefaultMergeThreshold)
		c.Resolver.SimilarityMergeThreshold = &threshold
	}
	if t := *c.Resolver.SimilarityMergeThreshold; t < 0 || t > 1 {
		return fmt.Errorf("resolver.similarity_merge_threshold must be in [0,1], got %f", t)
	}

	if c.Orchestrator.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.Orchestrator.MaxRetries = &retries
	}
	if *c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator.max_retries must be >= 0, got %d", *c.Orchestrator.MaxRetries)
	}
	if c.Orchestrator.PerCallTimeout <= 0 {
		c.Orchestrator.PerCallTimeout = Duration(DefaultPerCallTimeout)
	}
	if c.Orchestrator.ManuscriptWorkers <= 0 {
		c.Orchestrator.ManuscriptWorkers = DefaultManuscriptWorkers
	}
	if c.Orchestrator.ExtractionWorkers <= 0 {
		c.Orchestrator.ExtractionWorkers = DefaultExtractionWorkers
	}

	if c.Redis != nil {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is configured")
		}
		if c.Redis.Instance == "" {
			c.Redis.Instance = "default"
		}
	}

	return nil
}

// MergeThreshold returns the resolved similarity merge threshold.
func (c *Config) MergeThreshold() float64 {
	return *c.Resolver.SimilarityMergeThreshold
}

// MaxRetries returns the resolved per-stage retry budget.
func (c *Config) MaxRetries() int {
	return *c.Orchestrator.MaxRetries
}

// PerCallTimeout returns the resolved per-call timeout.
func (c *Config) PerCallTimeout() time.Duration {
	return time.Duration(c.Orchestrator.PerCallTimeout)
}

// Load reads and validates a peerlens.yml from the specified path, resolving
// the remote API key from the environment exactly once.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Oracle.APIKeyEnv != "" {
		cfg.Oracle.APIKey = os.Getenv(cfg.Oracle.APIKeyEnv)
		if cfg.Oracle.Kind == "remote" && cfg.Oracle.APIKey == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.Oracle.APIKeyEnv)
		}
	}

	return &cfg, nil
}
