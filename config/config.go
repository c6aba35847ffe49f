// Package config loads the server configuration.
//
// Values come from an optional YAML file, then from QR_* environment
// variables, then from command-line flags applied by cmd/server.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is given. A missing default file is not an error.
const DefaultPath = "quartalsreport.yaml"

type Config struct {
	// HTTP Server
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`

	// Database
	DBPath string `yaml:"db_path"`

	// Engine
	BudgetTable string `yaml:"budget_table"` // YAML/JSON file; empty uses the built-in table

	// Retention
	RunRetention  time.Duration `yaml:"run_retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:          8080,
		MaxUploadMB:   100,
		DBPath:        "./data/quartalsreport.db",
		RunRetention:  30 * 24 * time.Hour,
		SweepInterval: time.Hour,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads the YAML file at path and applies environment overrides.
// An empty path reads DefaultPath if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if envPath := os.Getenv("QR_CONFIG"); envPath != "" && !explicit {
		path, explicit = envPath, true
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides fields from QR_* variables. Malformed values are
// reported together.
func applyEnv(cfg *Config) error {
	var errs []string

	envOverride(&cfg.DBPath, "QR_DB_PATH")
	envOverride(&cfg.BudgetTable, "QR_BUDGET_TABLE")
	envOverride(&cfg.LogLevel, "QR_LOG_LEVEL")
	envOverride(&cfg.LogFormat, "QR_LOG_FORMAT")

	if err := envOverrideInt(&cfg.Port, "QR_PORT"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := envOverrideInt(&cfg.MaxUploadMB, "QR_MAX_UPLOAD_MB"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := envOverrideDuration(&cfg.RunRetention, "QR_RUN_RETENTION"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := envOverrideDuration(&cfg.SweepInterval, "QR_SWEEP_INTERVAL"); err != nil {
		errs = append(errs, err.Error())
	}

	if origins := os.Getenv("QR_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Validate validates the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errors = append(errors, "db_path cannot be empty")
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 1024 {
		errors = append(errors, fmt.Sprintf("invalid max_upload_mb %d: must be between 1 and 1024", c.MaxUploadMB))
	}

	if c.BudgetTable != "" {
		if _, err := os.Stat(c.BudgetTable); err != nil {
			errors = append(errors, fmt.Sprintf("budget table file %q: %v", c.BudgetTable, err))
		}
	}

	if c.RunRetention < 0 {
		errors = append(errors, fmt.Sprintf("invalid run_retention %v: must not be negative", c.RunRetention))
	}
	if c.RunRetention > 0 && c.SweepInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sweep_interval %v: must be at least 1 minute", c.SweepInterval))
	}

	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, err.Error())
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log_format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	for _, o := range c.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errors = append(errors, fmt.Sprintf("invalid allowed origin '%s': must start with http:// or https://", o))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level '%s': must be debug, info, warn or error", c.LogLevel)
	}
	return level, nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("%s=%q: must be a number", envKey, val)
	}
	*field = parsed
	return nil
}

func envOverrideDuration(field *time.Duration, envKey string) error {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("%s=%q: must be a duration like 720h", envKey, val)
	}
	*field = parsed
	return nil
}
