// Package config loads spy's environment configuration and builds its logger.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LevelSilent is above every real level.
const LevelSilent = slog.Level(100)

// Config is read from SPY_* environment variables. Command-line flags
// override individual fields after loading.
type Config struct {
	LogLevel     string `env:"SPY_LOG_LEVEL" envDefault:"warn"`
	LogFormat    string `env:"SPY_LOG_FORMAT" envDefault:"text"`
	DBPath       string `env:"SPY_DB"`
	MaxLineBytes int    `env:"SPY_MAX_LINE_BYTES" envDefault:"1048576"`
	NoColor      string `env:"NO_COLOR"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads the given environment instead of the process one.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field values that the env tags cannot express.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("SPY_LOG_FORMAT: unknown format %q (want text or json)", c.LogFormat)
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("SPY_MAX_LINE_BYTES: must be positive, got %d", c.MaxLineBytes)
	}
	return nil
}

// Color reports whether colored output is allowed. Any non-empty NO_COLOR
// disables it.
func (c Config) Color() bool {
	return c.NoColor == ""
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "silent", "off":
		return LevelSilent, nil
	default:
		return 0, fmt.Errorf("SPY_LOG_LEVEL: unknown level %q", name)
	}
}
