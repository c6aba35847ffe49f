package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brottuetchen/Quartalsreport/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: no config file in the package directory and no environment
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.Default(), *cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	// GIVEN: a YAML file and env overrides for some of its keys
	path := writeFile(t, "qr.yaml", `
port: 9000
db_path: /var/lib/qr.db
run_retention: 168h
sweep_interval: 15m
allowed_origins: ["https://intranet.example"]
log_format: json
`)
	t.Setenv("QR_PORT", "9100")
	t.Setenv("QR_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("QR_RUN_RETENTION", "48h")

	// WHEN: loading
	cfg, err := config.Load(path)
	require.NoError(t, err)

	// THEN: env wins over YAML, YAML over defaults
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "/var/lib/qr.db", cfg.DBPath)
	assert.Equal(t, 48*time.Hour, cfg.RunRetention)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 100, cfg.MaxUploadMB)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "bad.yaml", "port: [1, 2"))
		assert.Error(t, err)
	})

	t.Run("malformed env values are reported together", func(t *testing.T) {
		t.Setenv("QR_PORT", "achtzig")
		t.Setenv("QR_SWEEP_INTERVAL", "stündlich")

		_, err := config.Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "QR_PORT")
		assert.Contains(t, err.Error(), "QR_SWEEP_INTERVAL")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := config.Default()

	tests := []struct {
		name        string
		mutate      func(c *config.Config)
		errorString string
	}{
		{"port out of range", func(c *config.Config) { c.Port = 70000 }, "invalid port 70000"},
		{"empty db path", func(c *config.Config) { c.DBPath = " " }, "db_path cannot be empty"},
		{"upload limit", func(c *config.Config) { c.MaxUploadMB = 0 }, "invalid max_upload_mb 0"},
		{"negative retention", func(c *config.Config) { c.RunRetention = -time.Hour }, "must not be negative"},
		{"sweep too often", func(c *config.Config) { c.SweepInterval = time.Second }, "invalid sweep_interval"},
		{"log level", func(c *config.Config) { c.LogLevel = "loud" }, "invalid log_level 'loud'"},
		{"log format", func(c *config.Config) { c.LogFormat = "xml" }, "invalid log_format 'xml'"},
		{"origin scheme", func(c *config.Config) { c.AllowedOrigins = []string{"intranet"} }, "invalid allowed origin 'intranet'"},
		{"budget table missing", func(c *config.Config) { c.BudgetTable = "/does/not/exist.yaml" }, "budget table file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_Validate_CollectsAll(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port 0")
	assert.Contains(t, err.Error(), "invalid log_format")
}

func TestConfig_NoRetentionSkipsSweepCheck(t *testing.T) {
	cfg := config.Default()
	cfg.RunRetention = 0
	cfg.SweepInterval = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SlogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes())
}
