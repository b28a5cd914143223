// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the bridge configuration.
//
// Configuration is read once at startup from an optional YAML file plus a
// small set of environment overrides. The resulting Config is treated as
// immutable: it is passed by reference into every component that needs it
// and nothing mutates it after Load returns.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the TCP port the bridge listens on when none is configured.
	DefaultPort = 5001

	// DefaultTimeoutMs is the per-invocation deadline applied when a request
	// does not carry its own timeout (5 minutes, in milliseconds).
	DefaultTimeoutMs = 300000

	// MaxTimeoutMs is the ceiling a request-supplied timeout is clamped to
	// (1 hour, in milliseconds).
	MaxTimeoutMs = 3600000

	// DefaultGracePeriodMs is the window between the graceful and the forced
	// termination signal when an invocation exceeds its deadline.
	DefaultGracePeriodMs = 5000

	// DefaultMaxBodyBytes is the request body size ceiling (10 MB).
	DefaultMaxBodyBytes = 10 << 20
)

// FlowConfig describes how the external claude-flow CLI is launched.
type FlowConfig struct {
	// Binary is the executable looked up on PATH. The default launches the
	// published package through npx so no global install is required.
	Binary string `yaml:"binary"`

	// BaseArgs are prepended to every invocation, before the capability
	// subcommand. With the npx default this selects the claude-flow package.
	BaseArgs []string `yaml:"base-args"`

	// WorkingDir is the directory invocations run in unless a request
	// supplies its own repository path. Empty means the bridge's own
	// working directory.
	WorkingDir string `yaml:"working-dir"`

	// AnthropicAPIKey is handed to spawned processes through their
	// environment. The ANTHROPIC_API_KEY environment variable overrides the
	// file value. The key itself is never written to logs or responses.
	AnthropicAPIKey string `yaml:"anthropic-api-key"`

	// DefaultTimeoutMs bounds invocations whose request carries no timeout.
	DefaultTimeoutMs int64 `yaml:"default-timeout-ms"`

	// MaxTimeoutMs is the ceiling request-supplied timeouts are clamped to.
	MaxTimeoutMs int64 `yaml:"max-timeout-ms"`

	// GracePeriodMs is how long a timed-out process is given to exit after
	// the graceful signal before the forced signal is sent.
	GracePeriodMs int64 `yaml:"grace-period-ms"`
}

// Config represents the bridge configuration loaded at startup.
type Config struct {
	// Host is the interface the HTTP listener binds to.
	Host string `yaml:"host"`

	// Port is the TCP port the HTTP listener binds to.
	Port int `yaml:"port"`

	// Flow configures the supervised claude-flow invocations.
	Flow FlowConfig `yaml:"flow"`

	// AllowedOrigins lists the origins permitted to call the surface with
	// credentials. Requests from any other origin are rejected before they
	// reach a handler.
	AllowedOrigins []string `yaml:"allowed-origins"`

	// MaxBodyBytes rejects request bodies larger than this before parsing.
	MaxBodyBytes int64 `yaml:"max-body-bytes"`

	// MaxConcurrent caps simultaneous child processes. Zero means unbounded,
	// matching the historical behavior of the bridge.
	MaxConcurrent int `yaml:"max-concurrent"`

	// Debug enables verbose request logging and gin debug output.
	Debug bool `yaml:"debug"`

	// LoggingToFile redirects log output to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogDir is where rotating log files are written when LoggingToFile is set.
	LogDir string `yaml:"log-dir"`
}

// defaultConfig returns a Config populated with every default value. Load
// unmarshals the YAML file over this, so omitted keys keep their defaults.
func defaultConfig() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: DefaultPort,
		Flow: FlowConfig{
			Binary:           "npx",
			BaseArgs:         []string{"claude-flow@alpha"},
			DefaultTimeoutMs: DefaultTimeoutMs,
			MaxTimeoutMs:     MaxTimeoutMs,
			GracePeriodMs:    DefaultGracePeriodMs,
		},
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5000",
		},
		MaxBodyBytes: DefaultMaxBodyBytes,
		LogDir:       "logs",
	}
}

// Load reads the configuration file at path, applies environment overrides,
// and sanitizes the result. A missing file is an error; use LoadOptional when
// the bridge should fall back to pure defaults.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadOptional behaves like Load, except a missing file yields the default
// configuration instead of an error.
func LoadOptional(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, optional bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && optional:
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.sanitize()
	return cfg, nil
}

// applyEnvOverrides layers environment values over the file. The credential
// override mirrors how the bridge was historically configured, where the key
// only ever arrived through the environment.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Flow.AnthropicAPIKey = v
	}
	if v := os.Getenv("FLOWBRIDGE_WORKING_DIR"); v != "" {
		c.Flow.WorkingDir = v
	}
}

// sanitize trims and clamps user-supplied values into their valid ranges.
func (c *Config) sanitize() {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = DefaultPort
	}

	c.Flow.Binary = strings.TrimSpace(c.Flow.Binary)
	if c.Flow.Binary == "" {
		c.Flow.Binary = "npx"
		c.Flow.BaseArgs = []string{"claude-flow@alpha"}
	}
	c.Flow.AnthropicAPIKey = strings.TrimSpace(c.Flow.AnthropicAPIKey)
	if c.Flow.DefaultTimeoutMs <= 0 {
		c.Flow.DefaultTimeoutMs = DefaultTimeoutMs
	}
	if c.Flow.MaxTimeoutMs <= 0 {
		c.Flow.MaxTimeoutMs = MaxTimeoutMs
	}
	if c.Flow.DefaultTimeoutMs > c.Flow.MaxTimeoutMs {
		c.Flow.DefaultTimeoutMs = c.Flow.MaxTimeoutMs
	}
	if c.Flow.GracePeriodMs <= 0 {
		c.Flow.GracePeriodMs = DefaultGracePeriodMs
	}

	c.AllowedOrigins = normalizeOrigins(c.AllowedOrigins)
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MaxConcurrent < 0 {
		c.MaxConcurrent = 0
	}
	c.LogDir = strings.TrimSpace(c.LogDir)
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
}

// normalizeOrigins trims entries, drops empties and trailing slashes, and
// returns nil for an empty list so callers can distinguish "unset".
func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return nil
	}
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DefaultTimeout returns the deadline applied when a request has no timeout.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Flow.DefaultTimeoutMs) * time.Millisecond
}

// MaxTimeout returns the ceiling request timeouts are clamped to.
func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.Flow.MaxTimeoutMs) * time.Millisecond
}

// GracePeriod returns the window between graceful and forced termination.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Flow.GracePeriodMs) * time.Millisecond
}

// ClampTimeout resolves a request-supplied timeout in milliseconds against
// the configured default and ceiling. Zero or negative falls back to the
// default; anything above the ceiling is clamped down to it.
func (c *Config) ClampTimeout(requestedMs int64) time.Duration {
	if requestedMs <= 0 {
		return c.DefaultTimeout()
	}
	if requestedMs > c.Flow.MaxTimeoutMs {
		requestedMs = c.Flow.MaxTimeoutMs
	}
	return time.Duration(requestedMs) * time.Millisecond
}

// OriginAllowed reports whether origin is in the configured allow list.
// Matching is exact apart from a trailing slash.
func (c *Config) OriginAllowed(origin string) bool {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
