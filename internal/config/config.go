// Package config assembles runtime configuration in three layers: built-in
// defaults, an optional YAML file, and environment variables. Later layers
// win.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/plaza-social/plaza/pkg/logger"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr               string `yaml:"addr" env:"SERVER_ADDR"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec" env:"SERVER_SHUTDOWN_TIMEOUT_SEC"`
}

// ShutdownTimeout is the grace period for draining requests on stop.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// DatabaseConfig selects the storage backend. An empty URL runs the
// service on the in-memory gateway.
type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

// CORSConfig lists the origins admitted by the CORS middleware. Empty
// means every origin. The environment form is semicolon-separated.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// AuditConfig controls the request audit trail.
type AuditConfig struct {
	FilePath string `yaml:"file_path" env:"AUDIT_LOG_PATH"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Logging  logger.LoggingConfig `yaml:"logging"`
	CORS     CORSConfig           `yaml:"cors"`
	Audit    AuditConfig          `yaml:"audit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ShutdownTimeoutSec: 10,
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load builds the effective configuration. path may be empty to skip the
// file layer; a named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Environment overrides. No env vars set at all is fine.
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	return cfg, nil
}
