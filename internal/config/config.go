// Package config loads and validates the optional .buptest YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the harness configuration file at the repository root.
const FileName = ".buptest"

// Default values for runner and scratch configuration.
const (
	DefaultTimeout    = time.Duration(0) // no timeout
	DefaultMaxOutput  = 0                // unlimited
	DefaultScratchDir = "t/tmp"
	DefaultLogLevel   = "warn"
)

// Scratch keep policies.
const (
	KeepOnFailure = "on-failure"
	KeepAlways    = "always"
)

// Config holds the parsed .buptest configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int           `yaml:"version"`
	RawTimeout   string        `yaml:"timeout"`    // e.g. "30s"; empty means no timeout
	RawMaxOutput int           `yaml:"max_output"` // bytes; 0 means unlimited
	Scratch      ScratchConfig `yaml:"scratch"`
	Log          LogConfig     `yaml:"log"`
}

// ScratchConfig controls where per-test scratch directories live and
// when they are kept.
type ScratchConfig struct {
	Dir  string `yaml:"dir"`  // relative to the repo root unless absolute
	Keep string `yaml:"keep"` // on-failure (default) or always
}

// LogConfig controls the ambient logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // console (default) or json
}

// Timeout returns the configured runner timeout, or zero for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured capture cap, or zero for unlimited.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// ScratchDir returns the absolute scratch root for a repository root.
func (c *Config) ScratchDir(repoRoot string) string {
	dir := c.Scratch.Dir
	if dir == "" {
		dir = DefaultScratchDir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(repoRoot, filepath.FromSlash(dir))
}

// KeepAlways reports whether scratch directories are kept even when no
// failure was recorded.
func (c *Config) KeepAlways() bool {
	return c.Scratch.Keep == KeepAlways
}

// LogLevel returns the configured log level or the default.
func (c *Config) LogLevel() string {
	if c.Log.Level != "" {
		return c.Log.Level
	}
	return DefaultLogLevel
}

// Validate rejects values the harness cannot interpret.
func (c *Config) Validate() error {
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			return fmt.Errorf("timeout %q: %w", c.RawTimeout, err)
		}
	}
	if c.RawMaxOutput < 0 {
		return fmt.Errorf("max_output must not be negative, got %d", c.RawMaxOutput)
	}
	switch c.Scratch.Keep {
	case "", KeepOnFailure, KeepAlways:
	default:
		return fmt.Errorf("scratch.keep %q: want %q or %q", c.Scratch.Keep, KeepOnFailure, KeepAlways)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q: want console or json", c.Log.Format)
	}
	return nil
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing go.mod; falls back to workspace
	InModule bool   // a go.mod was found; false when RepoRoot is the fallback
}

// Load reads the .buptest file from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for go.mod. If no .buptest file exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := FindRepoRoot(workspace)
	inModule := err == nil
	if err != nil {
		// No go.mod found; use workspace as root.
		root, err = filepath.Abs(workspace)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace: %w", err)
		}
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, RepoRoot: root, InModule: inModule}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, RepoRoot: root, InModule: inModule}, nil
}

// FindRepoRoot walks upward from dir looking for a directory containing go.mod.
func FindRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
