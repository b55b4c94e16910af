// Package config loads and validates hrmerge settings from environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DBPath string // SQLite file holding the merge history.
	Addr   string // Listen address of the history API.

	LogLevel  string // "debug", "info", "warn" or "error"
	LogFormat string // "text" or "json"

	SplitMeters int // Split length used by info and the history.
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	splitMeters, splitErr := envInt("HRMERGE_SPLIT_METERS", 1000)

	cfg := Config{
		DBPath:      envStr("HRMERGE_DB_PATH", "hrmerge.db"),
		Addr:        envStr("HRMERGE_ADDR", ":8222"),
		LogLevel:    strings.ToLower(envStr("HRMERGE_LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(envStr("HRMERGE_LOG_FORMAT", "text")),
		SplitMeters: splitMeters,
	}

	if err := errors.Join(splitErr, cfg.Validate()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("config: HRMERGE_DB_PATH is required"))
	}
	if c.Addr == "" {
		errs = append(errs, fmt.Errorf("config: HRMERGE_ADDR is required"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("config: HRMERGE_LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if c.SplitMeters <= 0 {
		errs = append(errs, fmt.Errorf("config: HRMERGE_SPLIT_METERS must be positive"))
	}
	return errors.Join(errs...)
}

// Level maps LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown HRMERGE_LOG_LEVEL %q", c.LogLevel)
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}
