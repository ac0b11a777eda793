package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	DefaultDepth            = 7
	DefaultProgressInterval = 2 * time.Second
)

type AppConfig struct {
	InputPath  string
	OutputPath string
	EnginePath string

	Depth   int
	Workers int

	// EngineTimeout bounds a single analysis; zero means no limit.
	EngineTimeout    time.Duration
	ProgressInterval time.Duration

	RedisURL    string
	DatabaseURL string
	StatusAddr  string
}

// fileConfig mirrors the optional YAML file named by ANALYZER_CONFIG.
type fileConfig struct {
	Depth            int    `yaml:"depth"`
	Workers          int    `yaml:"workers"`
	EngineTimeout    string `yaml:"engine_timeout"`
	ProgressInterval string `yaml:"progress_interval"`
	RedisURL         string `yaml:"redis_url"`
	DatabaseURL      string `yaml:"database_url"`
	StatusAddr       string `yaml:"status_addr"`
}

// Load applies defaults, then the YAML file, then environment variables.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Depth:            DefaultDepth,
		Workers:          runtime.NumCPU(),
		ProgressInterval: DefaultProgressInterval,
	}

	if path := strings.TrimSpace(os.Getenv("ANALYZER_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyYAML(raw []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}
	if fc.Depth > 0 {
		c.Depth = fc.Depth
	}
	if fc.Workers > 0 {
		c.Workers = fc.Workers
	}
	if fc.EngineTimeout != "" {
		d, err := time.ParseDuration(fc.EngineTimeout)
		if err != nil {
			return fmt.Errorf("engine_timeout: %w", err)
		}
		c.EngineTimeout = d
	}
	if fc.ProgressInterval != "" {
		d, err := time.ParseDuration(fc.ProgressInterval)
		if err != nil {
			return fmt.Errorf("progress_interval: %w", err)
		}
		c.ProgressInterval = d
	}
	if v := strings.TrimSpace(fc.RedisURL); v != "" {
		c.RedisURL = v
	}
	if v := strings.TrimSpace(fc.DatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := strings.TrimSpace(fc.StatusAddr); v != "" {
		c.StatusAddr = v
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("ANALYZER_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANALYZER_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Depth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ENGINE_TIMEOUT: %w", err)
		}
		c.EngineTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("PROGRESS_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PROGRESS_INTERVAL: %w", err)
		}
		c.ProgressInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		c.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		c.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("STATUS_ADDR")); v != "" {
		c.StatusAddr = v
	}
	return nil
}

var ErrUsage = errors.New("usage: position-analyzer <input_path> <output_path> <engine_binary_path> [search_depth=7]")

// ApplyArgs fills the positional CLI arguments (program name excluded).
// An unparsable depth keeps the configured default.
func (c *AppConfig) ApplyArgs(args []string) error {
	if len(args) < 3 {
		return ErrUsage
	}
	c.InputPath = args[0]
	c.OutputPath = args[1]
	c.EnginePath = args[2]
	if len(args) > 3 {
		if n, err := strconv.Atoi(strings.TrimSpace(args[3])); err == nil && n > 0 && n <= 255 {
			c.Depth = n
		}
	}
	return nil
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.InputPath) == "" {
		return errors.New("input path is required")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return errors.New("output path is required")
	}
	if strings.TrimSpace(c.EnginePath) == "" {
		return errors.New("engine binary path is required")
	}
	if c.Depth <= 0 {
		return fmt.Errorf("search depth must be > 0: %d", c.Depth)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0: %d", c.Workers)
	}
	if c.EngineTimeout < 0 {
		return fmt.Errorf("engine timeout must be >= 0: %s", c.EngineTimeout)
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	return nil
}
