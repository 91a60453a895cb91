// Package config loads the YAML configuration file that wires every docqa
// component. Missing keys keep their defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/hashing"
	"github.com/poiesic/docqa/chunker"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/reindex"
	"github.com/poiesic/docqa/router"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/synthesis"
	"github.com/poiesic/docqa/watch"
	"gopkg.in/yaml.v3"
)

// Ingestion configures the ingestion worker pool and the built-in embedder.
type Ingestion struct {
	PoolSize         int `yaml:"pool_size"` // 0 picks a size from the CPU count
	BatchSize        int `yaml:"batch_size"`
	HashingDimension int `yaml:"hashing_dimension"`
}

// Storage configures persistence. An empty path keeps indexes in memory only.
type Storage struct {
	Path string `yaml:"path"`
}

// Logging configures the process logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Config is the root configuration.
type Config struct {
	AI        *ai.Config       `yaml:"ai"`
	Chunker   chunker.Config   `yaml:"chunker"`
	Extract   extract.Config   `yaml:"extract"`
	Router    router.Config    `yaml:"router"`
	Search    search.Config    `yaml:"search"`
	Synthesis synthesis.Config `yaml:"synthesis"`
	Ingestion Ingestion        `yaml:"ingestion"`
	Storage   Storage          `yaml:"storage"`
	Reindex   reindex.Config   `yaml:"reindex"`
	Watch     watch.Config     `yaml:"watch"`
	Logging   Logging          `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		AI:        ai.DefaultConfig(),
		Chunker:   chunker.DefaultConfig(),
		Extract:   extract.DefaultConfig(),
		Router:    router.DefaultConfig(),
		Search:    search.DefaultConfig(),
		Synthesis: synthesis.DefaultConfig(),
		Ingestion: Ingestion{
			BatchSize:        index.DefaultBatchSize,
			HashingDimension: hashing.DefaultDimension,
		},
		Reindex: reindex.DefaultConfig(),
		Watch:   watch.DefaultConfig(),
		Logging: Logging{Level: "info"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// A missing file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}
	if cfg.AI == nil {
		cfg.AI = ai.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
// The API key is never written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every component configuration.
func (c *Config) Validate() error {
	if c.AI == nil {
		return fmt.Errorf("%w: ai config is missing", core.ErrInvalidConfig)
	}
	checks := []struct {
		name string
		err  error
	}{
		{"ai", c.AI.Validate()},
		{"chunker", c.Chunker.Validate()},
		{"extract", c.Extract.Validate()},
		{"router", c.Router.Validate()},
		{"search", c.Search.Validate()},
		{"synthesis", c.Synthesis.Validate()},
		{"watch", c.Watch.Validate()},
	}
	var errs []error
	for _, check := range checks {
		if check.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", check.name, check.err))
		}
	}
	if c.Ingestion.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("%w: ingestion: pool_size cannot be negative", core.ErrInvalidConfig))
	}
	if c.Ingestion.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("%w: ingestion: batch_size must be positive", core.ErrInvalidConfig))
	}
	if c.Ingestion.HashingDimension < 1 {
		errs = append(errs, fmt.Errorf("%w: ingestion: hashing_dimension must be positive", core.ErrInvalidConfig))
	}
	if c.Reindex.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: reindex: max_attempts must be positive", core.ErrInvalidConfig))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", core.ErrInvalidConfig, level)
	}
}
