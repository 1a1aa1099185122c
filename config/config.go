// Package config provides configuration loading and management for the
// OpenSpec viewer.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	openspecwatcher "github.com/c360studio/openspec-viewer/processor/openspec-watcher"
)

// Config represents the complete viewer configuration
type Config struct {
	Server ServerConfig                `yaml:"server" json:"server"`
	Watch  openspecwatcher.WatchConfig `yaml:"watch" json:"watch"`
	NATS   NATSConfig                  `yaml:"nats" json:"nats"`
	Log    LogConfig                   `yaml:"log" json:"log"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Host is the interface to bind (default: 127.0.0.1)
	Host string `yaml:"host" json:"host"`
	// Port is the TCP port (default: 3000)
	Port int `yaml:"port" json:"port"`
	// StaticDir holds the frontend build; empty disables the frontend
	StaticDir string `yaml:"static_dir" json:"static_dir"`
	// OpenBrowser opens the viewer in the default browser on start
	OpenBrowser bool `yaml:"open_browser" json:"open_browser"`
}

// NATSConfig configures the optional change notification publisher
type NATSConfig struct {
	// URL is the NATS server URL (empty = notifications disabled)
	URL string `yaml:"url" json:"url"`
	// SubjectPrefix is prepended to every notification subject
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        3000,
			OpenBrowser: true,
		},
		Watch: openspecwatcher.DefaultWatchConfig(),
		NATS: NATSConfig{
			URL:           "", // Disabled
			SubjectPrefix: "openspec.changed",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats.subject_prefix is required when nats.url is set")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Addr returns the host:port listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ParseLevel converts a level name to a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}

// LoadFromFile loads configuration from a YAML, JSON or JSONC file on top of
// the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.apply(path); err != nil {
		return nil, err
	}
	return config, nil
}

// apply decodes the file at path onto c. Fields absent from the file keep
// their current values.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("failed to parse config file: invalid JSONC: %w", err)
		}
		if err := json.Unmarshal(standardized, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return nil
}

// SaveToFile atomically saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// atomic.WriteFile doesn't set permissions for new files
	if err := os.Chmod(path, 0644); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
// Booleans cannot be cleared through Merge; set them directly.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.StaticDir != "" {
		c.Server.StaticDir = other.Server.StaticDir
	}

	// Watch
	if other.Watch.DebounceDelay != "" {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}
	if len(other.Watch.Ignore) > 0 {
		c.Watch.Ignore = other.Watch.Ignore
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
