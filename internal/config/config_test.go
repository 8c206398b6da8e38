// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hpms/hpms/pkg/errutil"
)

// isolate points the default config file at an empty directory and clears
// every environment variable Load reads.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeYAML(t *testing.T, dir string, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("hpms", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, uint64(5), cfg.Database.ConnectAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.ConnectBackoff)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.StartTLS)
	assert.False(t, cfg.SMTP.Configured())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)
	path := writeYAML(t, t.TempDir(), map[string]any{
		"database": map[string]any{"url": "postgres://file@db/hpms"},
		"log":      map[string]any{"format": "text", "level": "warn"},
		"smtp":     map[string]any{"host": "mail.hospital.example", "port": 2525},
		"argon2":   map[string]any{"time": 2, "memory_kib": 32768, "threads": 2},
	})

	t.Setenv("DATABASE_URL", "postgres://env@db/hpms")
	t.Setenv("HPMS_SMTP_USER", "noreply@hospital.example")
	t.Setenv("HPMS_SMTP_PASS", "app-password")

	cfg, err := Load(newFlags(t, "--config", path, "--log-format", "json"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@db/hpms", cfg.Database.URL, "env beats file")
	assert.Equal(t, "json", cfg.Log.Format, "flag beats file")
	assert.Equal(t, "warn", cfg.Log.Level, "file beats defaults")
	assert.Equal(t, "mail.hospital.example", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.Configured())
	assert.Equal(t, "noreply@hospital.example", cfg.SMTP.From, "from defaults to the username")
	assert.Equal(t, Argon2{Time: 2, MemoryKiB: 32768, Threads: 2}, cfg.Argon2)
}

func TestLoad_UnchangedFlagsKeepLowerLayers(t *testing.T) {
	isolate(t)
	t.Setenv("HPMS_LOG_LEVEL", "debug")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://env@db/hpms")

	cfg, err := Load(newFlags(t, "--database-url", "postgres://flag@db/hpms", "--metrics-addr", "127.0.0.1:9100"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag@db/hpms", cfg.Database.URL)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
}

func TestLoad_EnvPortAndTLS(t *testing.T) {
	isolate(t)
	t.Setenv("HPMS_SMTP_PORT", "465")
	t.Setenv("HPMS_SMTP_TLS", "false")
	t.Setenv("HPMS_SMTP_FROM", "desk@hospital.example")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.False(t, cfg.SMTP.StartTLS)
	assert.Equal(t, "desk@hospital.example", cfg.SMTP.From)
}

func TestLoad_DefaultFileIsRead(t *testing.T) {
	isolate(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "hpms")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	writeYAML(t, dir, map[string]any{"metrics": map[string]any{"addr": ":9200"}})

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":9200", cfg.Metrics.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) *pflag.FlagSet
		wantCode string
	}{
		{
			name: "explicit file missing",
			setup: func(t *testing.T) *pflag.FlagSet {
				return newFlags(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
			},
			wantCode: "CONFIG_FILE_UNREADABLE",
		},
		{
			name: "malformed yaml",
			setup: func(t *testing.T) *pflag.FlagSet {
				path := filepath.Join(t.TempDir(), "bad.yaml")
				require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o600))
				return newFlags(t, "--config", path)
			},
			wantCode: "CONFIG_FILE_INVALID",
		},
		{
			name: "bad log format",
			setup: func(t *testing.T) *pflag.FlagSet {
				return newFlags(t, "--log-format", "xml")
			},
			wantCode: "CONFIG_INVALID",
		},
		{
			name: "bad log level",
			setup: func(t *testing.T) *pflag.FlagSet {
				return newFlags(t, "--log-level", "loud")
			},
			wantCode: "CONFIG_INVALID",
		},
		{
			name: "bad database scheme",
			setup: func(t *testing.T) *pflag.FlagSet {
				return newFlags(t, "--database-url", "mysql://db/hpms")
			},
			wantCode: "CONFIG_INVALID",
		},
		{
			name: "bad smtp port",
			setup: func(t *testing.T) *pflag.FlagSet {
				t.Setenv("HPMS_SMTP_PORT", "70000")
				return newFlags(t)
			},
			wantCode: "CONFIG_INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(tt.setup(t))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestLog_SlogLevel(t *testing.T) {
	level, err := Log{Level: "warn"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
