// Package config provides configuration loading for docindex.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config is the complete docindex configuration
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Embedder  EmbedderConfig  `koanf:"embedder"`
	Indexer   IndexerConfig   `koanf:"indexer"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Watch     WatchConfig     `koanf:"watch"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// StorageConfig selects the section store
type StorageConfig struct {
	Backend string `koanf:"backend"` // sqlite or postgres
	Path    string `koanf:"path"`    // SQLite database file
	DSN     string `koanf:"dsn"`     // Postgres connection string
}

// EmbedderConfig configures the embedding provider
type EmbedderConfig struct {
	Provider          string        `koanf:"provider"` // openai, jina, local; empty auto-detects
	APIKey            string        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	BaseURL           string        `koanf:"base_url"`
	Dimension         int           `koanf:"dimension"`
	Timeout           time.Duration `koanf:"timeout"`
	CacheSize         int           `koanf:"cache_size"`
	RequestsPerSecond float64       `koanf:"requests_per_second"` // 0 disables rate limiting
	Burst             int           `koanf:"burst"`
	MaxConcurrent     int           `koanf:"max_concurrent"`
	MaxRetries        int           `koanf:"max_retries"`
}

// IndexerConfig configures the pipeline
type IndexerConfig struct {
	Workers         int  `koanf:"workers"`
	Force           bool `koanf:"force"`
	MaxSectionChars int  `koanf:"max_section_chars"`
	SectionOverlap  int  `koanf:"section_overlap"`
}

// DiscoveryConfig controls which files are indexed
type DiscoveryConfig struct {
	Root          string   `koanf:"root"`
	Extensions    []string `koanf:"extensions"`
	ExcludeDirs   []string `koanf:"exclude_dirs"`
	IncludeHidden bool     `koanf:"include_hidden"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Addr string `koanf:"addr"` // Empty disables the endpoint
}

// Defaults
const (
	DefaultStorageBackend  = "sqlite"
	DefaultStoragePath     = "docindex.db"
	DefaultEmbedderTimeout = 30 * time.Second
	DefaultCacheSize       = 10000
	DefaultMaxConcurrent   = 4
	DefaultMaxRetries      = 3
	DefaultWorkers         = 1
	DefaultMaxSectionChars = 4000
	DefaultDiscoveryRoot   = "data"
	DefaultWatchDebounce   = 500 * time.Millisecond
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultConfigFile      = "docindex.yaml"
	EnvPrefix              = "DOCINDEX_"
	maxConfigFileSize      = 1024 * 1024 // 1MB
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values
func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}

	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = DefaultEmbedderTimeout
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = DefaultCacheSize
	}
	if cfg.Embedder.MaxConcurrent == 0 {
		cfg.Embedder.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Embedder.MaxRetries == 0 {
		cfg.Embedder.MaxRetries = DefaultMaxRetries
	}

	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = DefaultWorkers
	}
	if cfg.Indexer.MaxSectionChars == 0 {
		cfg.Indexer.MaxSectionChars = DefaultMaxSectionChars
	}

	if cfg.Discovery.Root == "" {
		cfg.Discovery.Root = DefaultDiscoveryRoot
	}
	cfg.Discovery.Extensions = splitList(cfg.Discovery.Extensions)
	if len(cfg.Discovery.Extensions) == 0 {
		cfg.Discovery.Extensions = []string{".md", ".mdx"}
	}
	if cfg.Discovery.ExcludeDirs == nil {
		cfg.Discovery.ExcludeDirs = []string{"node_modules", "vendor"}
	} else {
		cfg.Discovery.ExcludeDirs = splitList(cfg.Discovery.ExcludeDirs)
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// splitList expands comma-separated entries, which is how lists arrive from
// environment variables.
func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite backend"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be sqlite or postgres, got %q", c.Storage.Backend))
	}

	switch strings.ToLower(c.Embedder.Provider) {
	case "", "openai", "jina", "local":
	default:
		errs = append(errs, fmt.Errorf("embedder.provider must be openai, jina or local, got %q", c.Embedder.Provider))
	}
	if c.Embedder.Timeout < 0 {
		errs = append(errs, errors.New("embedder.timeout must not be negative"))
	}
	if c.Embedder.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("embedder.requests_per_second must not be negative"))
	}
	if c.Embedder.MaxRetries < 1 {
		errs = append(errs, errors.New("embedder.max_retries must be at least 1"))
	}

	if c.Indexer.Workers < 1 {
		errs = append(errs, errors.New("indexer.workers must be at least 1"))
	}
	if c.Indexer.MaxSectionChars < 1 {
		errs = append(errs, errors.New("indexer.max_section_chars must be positive"))
	}
	if c.Indexer.SectionOverlap < 0 || c.Indexer.SectionOverlap >= c.Indexer.MaxSectionChars {
		errs = append(errs, errors.New("indexer.section_overlap must be >= 0 and < max_section_chars"))
	}

	for _, ext := range c.Discovery.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("discovery.extensions entry %q must start with a dot", ext))
		}
	}

	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
