package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ANALYZER_CONFIG", "ANALYZER_WORKERS", "ANALYZER_DEPTH", "ENGINE_TIMEOUT", "PROGRESS_INTERVAL", "REDIS_URL", "DATABASE_URL", "STATUS_ADDR"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Depth != 7 || cfg.Workers != runtime.NumCPU() || cfg.EngineTimeout != 0 || cfg.ProgressInterval != 2*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "analyzer.yaml")
	body := "depth: 12\nworkers: 3\nengine_timeout: 30s\nredis_url: redis://localhost:6379/2\nstatus_addr: 127.0.0.1:9090\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ANALYZER_CONFIG", path)
	t.Setenv("ANALYZER_WORKERS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Depth != 12 || cfg.Workers != 5 || cfg.EngineTimeout != 30*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.RedisURL != "redis://localhost:6379/2" || cfg.StatusAddr != "127.0.0.1:9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad ENGINE_TIMEOUT")
	}
}

func TestApplyArgs(t *testing.T) {
	cfg := &AppConfig{Depth: DefaultDepth, Workers: 1}
	if err := cfg.ApplyArgs([]string{"in.jsonl", "out.jsonl"}); !errors.Is(err, ErrUsage) {
		t.Fatalf("err = %v, want ErrUsage", err)
	}
	if err := cfg.ApplyArgs([]string{"in.jsonl", "out.jsonl", "/usr/bin/stockfish"}); err != nil {
		t.Fatalf("ApplyArgs: %v", err)
	}
	if cfg.Depth != 7 {
		t.Fatalf("depth = %d", cfg.Depth)
	}
	if err := cfg.ApplyArgs([]string{"in.jsonl", "out.jsonl", "sf", "12"}); err != nil || cfg.Depth != 12 {
		t.Fatalf("depth = %d err = %v", cfg.Depth, err)
	}
	if err := cfg.ApplyArgs([]string{"in.jsonl", "out.jsonl", "sf", "deep"}); err != nil || cfg.Depth != 12 {
		t.Fatalf("unparsable depth should be ignored: %d %v", cfg.Depth, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := AppConfig{InputPath: "a", OutputPath: "b", EnginePath: "c", Depth: 7, Workers: 2}
	bad := []func(*AppConfig){
		func(c *AppConfig) { c.InputPath = "" },
		func(c *AppConfig) { c.EnginePath = " " },
		func(c *AppConfig) { c.Depth = 0 },
		func(c *AppConfig) { c.Workers = -1 },
		func(c *AppConfig) { c.EngineTimeout = -time.Second },
	}
	for i, mutate := range bad {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
