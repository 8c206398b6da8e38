// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

// Package config loads hpms configuration from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/hpms/hpms/internal/xdg"
)

// Config is the complete hpms configuration.
type Config struct {
	Database Database `koanf:"database"`
	SMTP     SMTP     `koanf:"smtp"`
	Log      Log      `koanf:"log"`
	Metrics  Metrics  `koanf:"metrics"`
	Argon2   Argon2   `koanf:"argon2"`
}

// Database configures the relational store. An empty URL runs hpms on the
// in-memory store only.
type Database struct {
	URL             string        `koanf:"url"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
}

// SMTP configures outbound email.
type SMTP struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// From defaults to Username when empty.
	From     string `koanf:"from"`
	StartTLS bool   `koanf:"starttls"`
}

// Configured reports whether credentials are present.
func (s SMTP) Configured() bool {
	return s.Username != "" && s.Password != ""
}

// Log configures the process logger.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Metrics configures the metrics and health endpoint.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Argon2 tunes password hashing. Zero values take the hasher defaults.
type Argon2 struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// Flag names registered by RegisterFlags.
const (
	FlagConfig      = "config"
	FlagDatabaseURL = "database-url"
	FlagLogFormat   = "log-format"
	FlagLogLevel    = "log-level"
	FlagMetricsAddr = "metrics-addr"
)

var flagKeys = map[string]string{
	FlagDatabaseURL: "database.url",
	FlagLogFormat:   "log.format",
	FlagLogLevel:    "log.level",
	FlagMetricsAddr: "metrics.addr",
}

var envKeys = map[string]string{
	"DATABASE_URL":      "database.url",
	"HPMS_DATABASE_URL": "database.url",
	"HPMS_SMTP_HOST":    "smtp.host",
	"HPMS_SMTP_PORT":    "smtp.port",
	"HPMS_SMTP_USER":    "smtp.username",
	"HPMS_SMTP_PASS":    "smtp.password",
	"HPMS_SMTP_FROM":    "smtp.from",
	"HPMS_SMTP_TLS":     "smtp.starttls",
	"HPMS_LOG_FORMAT":   "log.format",
	"HPMS_LOG_LEVEL":    "log.level",
	"HPMS_METRICS_ADDR": "metrics.addr",
}

func defaults() map[string]any {
	return map[string]any{
		"database.connect_attempts": 5,
		"database.connect_backoff":  "200ms",
		"smtp.host":                 "smtp.gmail.com",
		"smtp.port":                 587,
		"smtp.starttls":             true,
		"log.format":                "json",
		"log.level":                 "info",
		"metrics.addr":              "",
	}
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "config file (default: $XDG_CONFIG_HOME/hpms/config.yaml)")
	fs.String(FlagDatabaseURL, "", "PostgreSQL URL (empty = in-memory store only)")
	fs.String(FlagLogFormat, "json", "log format (json or text)")
	fs.String(FlagLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(FlagMetricsAddr, "", "metrics/health HTTP address (empty = disabled)")
}

// Load builds the configuration. flags may be nil. An explicit --config file
// must exist; the default file is optional.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	path, explicit, err := configFile(flags)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFile(flags *pflag.FlagSet) (path string, explicit bool, err error) {
	if flags != nil {
		if f := flags.Lookup(FlagConfig); f != nil && f.Value.String() != "" {
			return f.Value.String(), true, nil
		}
	}
	path, err = xdg.ConfigFile()
	if err != nil {
		// No home directory means no default file.
		return "", false, nil //nolint:nilerr // default file is optional
	}
	return path, false, nil
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_FILE_UNREADABLE").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
	}
	return nil
}

func envValue(key, value string) (string, any) {
	mapped, ok := envKeys[key]
	if !ok || value == "" {
		return "", nil
	}
	return mapped, value
}

func flagValue(flags *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.format").
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return oops.Code("CONFIG_INVALID").
			With("field", "smtp.port").
			Errorf("smtp port out of range: %d", c.SMTP.Port)
	}
	if c.Database.URL != "" && !strings.HasPrefix(c.Database.URL, "postgres://") &&
		!strings.HasPrefix(c.Database.URL, "postgresql://") {
		return oops.Code("CONFIG_INVALID").
			With("field", "database.url").
			Errorf("database url must use the postgres:// scheme")
	}
	return nil
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("field", "log.level").Wrap(err)
	}
	return level, nil
}
