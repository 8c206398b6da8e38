// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpms/hpms/pkg/errutil"
)

func TestMigrateCmd_Properties(t *testing.T) {
	cmd := newMigrateCmd(&Deps{})

	assert.Equal(t, "migrate", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "version"}, names)
}

func TestMigrateCmd_RequiresDatabaseURL(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{}

	_, err := execute(t, migratorDeps(m), "", "migrate")

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Zero(t, m.upCalls)
}

func TestMigrateCmd_Up(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bare migrate", args: withDatabase("migrate")},
		{name: "migrate up", args: withDatabase("migrate", "up")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			m := &fakeMigrator{pending: []uint{1, 2, 3, 4}}

			out, err := execute(t, migratorDeps(m), "", tt.args...)

			require.NoError(t, err)
			assert.Equal(t, 1, m.upCalls)
			assert.Equal(t, 1, m.closeCalls)
			assert.Contains(t, out, "Migrations completed successfully")
			assert.Contains(t, out, "Schema version: 000004_create_audit_log")
			assert.Contains(t, out, "Pending migrations: 0")
		})
	}
}

func TestMigrateCmd_DatabaseURLFromEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", testDatabaseURL)
	m := &fakeMigrator{}
	var gotURL string
	deps := &Deps{MigratorFactory: func(url string) (Migrator, error) {
		gotURL = url
		return m, nil
	}}

	_, err := execute(t, deps, "", "migrate", "up")

	require.NoError(t, err)
	assert.Equal(t, testDatabaseURL, gotURL)
}

func TestMigrateCmd_UpFailure(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{upErr: errors.New("syntax error at or near")}

	_, err := execute(t, migratorDeps(m), "", withDatabase("migrate", "up")...)

	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	assert.Equal(t, 1, m.closeCalls)
}

func TestMigrateCmd_MigratorFactoryFailure(t *testing.T) {
	isolateEnv(t)
	deps := &Deps{MigratorFactory: func(string) (Migrator, error) {
		return nil, errors.New("connection refused")
	}}

	_, err := execute(t, deps, "", withDatabase("migrate")...)

	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}

func TestMigrateCmd_Down(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantSteps   []int
		wantDown    int
		wantVersion string
	}{
		{
			name:        "one step",
			args:        withDatabase("migrate", "down"),
			wantSteps:   []int{-1},
			wantVersion: "Schema version: 000003_create_contact_directory",
		},
		{
			name:        "all",
			args:        withDatabase("migrate", "down", "--all"),
			wantDown:    1,
			wantVersion: "Schema version: 0 (empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			m := &fakeMigrator{version: 4}

			out, err := execute(t, migratorDeps(m), "", tt.args...)

			require.NoError(t, err)
			assert.Equal(t, tt.wantSteps, m.steps)
			assert.Equal(t, tt.wantDown, m.downCalls)
			assert.Contains(t, out, "Rollback completed successfully")
			assert.Contains(t, out, tt.wantVersion)
		})
	}
}

func TestMigrateCmd_Version(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{version: 2, dirty: true, pending: []uint{3, 4}}

	out, err := execute(t, migratorDeps(m), "", withDatabase("migrate", "version")...)

	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 000002_create_password_resets")
	assert.Contains(t, out, "Warning: schema is dirty")
	assert.Contains(t, out, "Pending migrations: 2")
	assert.Zero(t, m.upCalls)
}
