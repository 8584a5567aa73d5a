// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects level and output format.
type Config struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, console
}

// SetDefaults fills unset fields. APP_ENV=dev switches to console output.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
			c.Format = "console"
		} else {
			c.Format = "json"
		}
	}
}

// Setup installs the global logger.
func Setup(cfg Config) error {
	cfg.SetDefaults()
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return err
	}
	log.Logger = New(os.Stdout, cfg.Format).Level(level)
	zerolog.SetGlobalLevel(level)
	return nil
}

// New builds a timestamped logger writing to w.
func New(w io.Writer, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Component returns a child of the global logger tagged with component.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
