// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

//go:embed smartnotes.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/smartnotes/smartnotes.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", snerr.Errorf(snerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "smartnotes", "smartnotes.yaml"), nil
}

// BootstrapConfig writes the default commented config to path unless a file
// is already there. It returns path when it wrote the file and "" otherwise;
// failures are logged at debug level and skipped.
func BootstrapConfig(path string) string {
	if path == "" {
		return ""
	}

	if _, err := os.Stat(path); err == nil {
		return ""
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
