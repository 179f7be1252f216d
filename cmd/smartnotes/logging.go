// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/OlesyaDud/smart-notes/internal/config"
)

// setupLogging installs the default slog logger. verbose forces debug.
func setupLogging(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	logger := newLogger(w, cfg, verbose)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
