package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeTemp(t, "cfg.yaml", "addr: \":9090\"\nworker_pool_size: 8\ncache_capacity: 50\nrequired_types:\n  - detector\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.WorkerPoolSize != 8 {
		t.Fatalf("worker_pool_size = %d", cfg.WorkerPoolSize)
	}
	if len(cfg.RequiredTypes) != 1 || cfg.RequiredTypes[0] != "detector" {
		t.Fatalf("required_types = %v", cfg.RequiredTypes)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeTemp(t, "cfg.json", `{"addr":":7070","cache_ttl_seconds":60,"default_deadline_ms":2500}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.CacheTTL() != 60*time.Second {
		t.Fatalf("cache ttl = %v", cfg.CacheTTL())
	}
	if cfg.DefaultDeadline() != 2500*time.Millisecond {
		t.Fatalf("deadline = %v", cfg.DefaultDeadline())
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeTemp(t, "cfg.toml", "addr = \":6060\"\njob_retention_seconds = 120\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":6060" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.JobRetention() != 2*time.Minute {
		t.Fatalf("retention = %v", cfg.JobRetention())
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "cfg.ini", "addr=:1234")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()
	if cfg.Addr != DefaultAddr {
		t.Fatalf("addr default = %q", cfg.Addr)
	}
	if cfg.WorkerPoolSize != DefaultWorkerPoolSize {
		t.Fatalf("workers default = %d", cfg.WorkerPoolSize)
	}
	if cfg.CacheCapacity != DefaultCacheCapacity {
		t.Fatalf("cache capacity default = %d", cfg.CacheCapacity)
	}
	if cfg.CacheTTLSeconds != DefaultCacheTTLSeconds {
		t.Fatalf("cache ttl default = %d", cfg.CacheTTLSeconds)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level default = %q", cfg.LogLevel)
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	cfg := Config{Addr: ":1", WorkerPoolSize: 2, CacheCapacity: 3, CacheTTLSeconds: 4, JobRetentionSeconds: 5, LogLevel: "debug"}
	cfg.Normalize()
	if cfg.Addr != ":1" || cfg.WorkerPoolSize != 2 || cfg.CacheCapacity != 3 || cfg.CacheTTLSeconds != 4 || cfg.JobRetentionSeconds != 5 || cfg.LogLevel != "debug" {
		t.Fatalf("normalize clobbered explicit values: %+v", cfg)
	}
}
