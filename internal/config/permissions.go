// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// readableByOthers covers the group and world read bits.
const readableByOthers fs.FileMode = 0o044

// WarnInsecurePermissions logs a warning when the config file at path can be
// read by other users, since it may hold the embedding API key or the bot
// token. It reports whether the warning fired and never fails startup.
func WarnInsecurePermissions(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}

	if info.Mode().Perm()&readableByOthers == 0 {
		return false
	}

	slog.Warn("config file has insecure permissions, secrets may be readable by other users",
		"path", path,
		"mode", info.Mode(),
		"recommended", "0600",
	)
	return true
}
