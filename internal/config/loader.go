package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	CatalogPath string `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path"`
	ArtifactDir string `json:"artifact_dir" yaml:"artifact_dir" toml:"artifact_dir"`

	WorkerPoolSize      int   `json:"worker_pool_size" yaml:"worker_pool_size" toml:"worker_pool_size"`
	CacheCapacity       int   `json:"cache_capacity" yaml:"cache_capacity" toml:"cache_capacity"`
	CacheTTLSeconds     int   `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	DefaultDeadlineMs   int64 `json:"default_deadline_ms" yaml:"default_deadline_ms" toml:"default_deadline_ms"`
	JobRetentionSeconds int   `json:"job_retention_seconds" yaml:"job_retention_seconds" toml:"job_retention_seconds"`

	// Model types that must each have a ready model before /readyz reports ready.
	RequiredTypes []string `json:"required_types" yaml:"required_types" toml:"required_types"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
}

// Defaults applied by Normalize when fields are unset.
const (
	DefaultAddr                = ":8080"
	DefaultWorkerPoolSize      = 4
	DefaultCacheCapacity       = 100
	DefaultCacheTTLSeconds     = 300
	DefaultJobRetentionSeconds = 600
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Normalize fills unset fields with package defaults.
func (c *Config) Normalize() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if c.JobRetentionSeconds <= 0 {
		c.JobRetentionSeconds = DefaultJobRetentionSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// CacheTTL returns the cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// DefaultDeadline returns the default per-request deadline (0 = none).
func (c Config) DefaultDeadline() time.Duration {
	return time.Duration(c.DefaultDeadlineMs) * time.Millisecond
}

// JobRetention returns the batch job retention window as a duration.
func (c Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionSeconds) * time.Second
}
