// Package config loads fleetwear settings from a YAML or JSON file with
// FLEETWEAR_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"fleetwear/internal/backend"
	"fleetwear/internal/fleet"
	"fleetwear/internal/logging"
)

// EnvPrefix marks environment overrides. Nested keys use "__", so
// FLEETWEAR_SCANNER__INTERVAL sets scanner.interval.
const EnvPrefix = "FLEETWEAR_"

type Config struct {
	Server      ServerConfig            `koanf:"server"`
	Backend     backend.Config          `koanf:"backend"`
	Database    DatabaseConfig          `koanf:"database"`
	Scanner     ScannerConfig           `koanf:"scanner"`
	Maintenance fleet.MaintenanceConfig `koanf:"maintenance"`
	Logging     logging.Config          `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// RateLimit is requests per minute per caller on /api routes. Signed-in
	// callers are counted per token, anonymous ones per client IP.
	RateLimit int `koanf:"rate_limit"`
	// IPRateLimit caps all /api requests from one client IP, whatever token
	// they carry. Defaults to four times RateLimit so a depot's drivers can
	// share an address.
	IPRateLimit     int           `koanf:"ip_rate_limit"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// AllowedOrigins limits CORS to the dashboard hosts; empty allows any.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":9080"
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 120
	}
	if c.IPRateLimit <= 0 {
		c.IPRateLimit = 4 * c.RateLimit
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// DatabaseConfig locates the sqlite file holding history and notification
// settings.
type DatabaseConfig struct {
	Path          string `koanf:"path"`
	RetentionDays int    `koanf:"retention_days"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "fleetwear.db"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 365
	}
}

// ScannerConfig controls the background fleet scan.
type ScannerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

func (c *ScannerConfig) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
}

func (c ScannerConfig) Validate() error {
	if c.Interval < time.Minute {
		return fmt.Errorf("scanner.interval %s is below the 1m minimum", c.Interval)
	}
	return nil
}

// Load reads path (if non-empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(defaultsProvider{}, nil); err != nil {
		return nil, err
	}

	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Backend.SetDefaults()
	c.Database.SetDefaults()
	c.Scanner.SetDefaults()
	c.Maintenance = c.Maintenance.WithDefaults(fleet.MaintenanceConfig{})
	c.Logging.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Scanner.Enabled {
		if err := c.Scanner.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// defaultsProvider seeds keys whose zero value is meaningful, so that a
// missing key and an explicit false can be told apart.
type defaultsProvider struct{}

func (defaultsProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("defaultsProvider does not support ReadBytes")
}

func (defaultsProvider) Read() (map[string]any, error) {
	return map[string]any{
		"scanner": map[string]any{"enabled": true},
	}, nil
}
