// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

// Package xdg resolves XDG Base Directory paths for hpms.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "hpms"

// ConfigFileName is the name of the optional configuration file.
const ConfigFileName = "config.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/hpms, falling back to ~/.config/hpms.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_HOME_UNKNOWN").Wrap(err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigFile returns the default configuration file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}
