// Package config loads depchain settings from defaults, an optional YAML or
// TOML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ortelius/depchain/util"
	"gopkg.in/yaml.v2"
)

// Match policies for locating packages in the tree
const (
	MatchSubstring = "substring"
	MatchExact     = "exact"
)

// Config holds the application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis"`
	Npm      NpmConfig      `yaml:"npm" toml:"npm"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
}

// AnalysisConfig controls path finding and classification.
type AnalysisConfig struct {
	Match    string `yaml:"match" toml:"match"`         // substring or exact
	MaxDepth int    `yaml:"max_depth" toml:"max_depth"` // 0 for no limit
	MaxPaths int    `yaml:"max_paths" toml:"max_paths"` // chains printed per transitive finding
	Workers  int    `yaml:"workers" toml:"workers"`
}

// NpmConfig controls invocation of the npm binary.
type NpmConfig struct {
	Binary         string `yaml:"binary" toml:"binary"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port      string `yaml:"port" toml:"port"`
	BodyLimit int    `yaml:"body_limit" toml:"body_limit"` // bytes
}

// DatabaseConfig holds the ArangoDB connection settings.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	URL     string `yaml:"url" toml:"url"`
	User    string `yaml:"user" toml:"user"`
	Pass    string `yaml:"pass" toml:"pass"`
	Name    string `yaml:"name" toml:"name"`
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Match:    MatchSubstring,
			MaxPaths: 3,
			Workers:  4,
		},
		Npm: NpmConfig{
			Binary:         "npm",
			TimeoutSeconds: 600,
		},
		Server: ServerConfig{
			Port:      "3000",
			BodyLimit: 50 * 1024 * 1024, // 50MB for large lockfile trees
		},
		Database: DatabaseConfig{
			URL:  "http://localhost:8529",
			User: "root",
			Name: "depchain",
		},
	}
}

// Load returns the defaults merged with the file at path (when not empty) and
// the environment. The file format follows its extension: .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format: %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	dbhost := util.GetEnvDefault("ARANGO_HOST", "")
	dbport := util.GetEnvDefault("ARANGO_PORT", "8529")
	if dbhost != "" {
		c.Database.URL = "http://" + dbhost + ":" + dbport
	}
	c.Database.URL = util.GetEnvDefault("ARANGO_URL", c.Database.URL)
	c.Database.User = util.GetEnvDefault("ARANGO_USER", c.Database.User)
	c.Database.Pass = util.GetEnvDefault("ARANGO_PASS", c.Database.Pass)
	c.Server.Port = util.GetEnvDefault("MS_PORT", c.Server.Port)

	if workers, err := strconv.Atoi(util.GetEnvDefault("DEPCHAIN_WORKERS", "")); err == nil {
		c.Analysis.Workers = workers
	}
}

// Validate checks the values that cannot be defaulted silently
func (c *Config) Validate() error {
	switch c.Analysis.Match {
	case MatchSubstring, MatchExact:
	default:
		return fmt.Errorf("invalid match policy %q (expected %s or %s)", c.Analysis.Match, MatchSubstring, MatchExact)
	}
	if c.Analysis.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if c.Analysis.MaxPaths < 0 {
		return fmt.Errorf("max_paths must not be negative")
	}
	return nil
}

// NpmTimeout returns the npm timeout as a duration
func (c *Config) NpmTimeout() time.Duration {
	return time.Duration(c.Npm.TimeoutSeconds) * time.Second
}
