package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "fleetwear.yaml", `
server:
  addr: ":8088"
  allowed_origins:
    - "https://dash.fleet.local"
backend:
  base_url: "http://fleet.local/api"
  service_token: "svc"
scanner:
  interval: 5m
maintenance:
  oil_change_interval_km: 20000
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.Server.Addr)
	assert.Equal(t, []string{"https://dash.fleet.local"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.Equal(t, 480, cfg.Server.IPRateLimit)
	assert.Equal(t, "http://fleet.local/api", cfg.Backend.BaseURL)
	assert.Equal(t, "svc", cfg.Backend.ServiceToken)
	assert.True(t, cfg.Scanner.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scanner.Interval)
	assert.Equal(t, 20000.0, cfg.Maintenance.OilChangeIntervalKm)
	assert.Equal(t, 50000.0, cfg.Maintenance.TireRotationIntervalKm)
	assert.Equal(t, 12.0, cfg.Maintenance.TreadDepthNewMm)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "fleetwear.db", cfg.Database.Path)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "fleetwear.json", `{"backend":{"base_url":"https://fleet.example.com"},"scanner":{"enabled":false}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Scanner.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Scanner.Interval)
	assert.Equal(t, 120, cfg.Server.RateLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "fleetwear.yaml", "backend:\n  base_url: http://file.local\n")
	t.Setenv("FLEETWEAR_BACKEND__BASE_URL", "http://env.local")
	t.Setenv("FLEETWEAR_DATABASE__PATH", "/var/lib/fleetwear/wear.db")
	t.Setenv("FLEETWEAR_SCANNER__INTERVAL", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.local", cfg.Backend.BaseURL)
	assert.Equal(t, "/var/lib/fleetwear/wear.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Minute, cfg.Scanner.Interval)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("FLEETWEAR_BACKEND__BASE_URL", "http://env.local")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://env.local", cfg.Backend.BaseURL)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing backend", "server:\n  addr: \":1\"\n"},
		{"scanner too fast", "backend:\n  base_url: http://x.local\nscanner:\n  interval: 10s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "c.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config format")
}
