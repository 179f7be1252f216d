// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OlesyaDud/smart-notes/internal/config"
	"github.com/OlesyaDud/smart-notes/internal/server"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the note store over HTTP",
		Long:  "Wire the note store and serve the REST API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = v.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx, v)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	srv, err := newServer(app)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving smartnotes on %s\n", app.Config.Server.Listen)
	return srv.Start(ctx)
}

func newServer(app *App) (*server.Server, error) {
	srv, err := server.New(serverConfig(app.Config.Server))
	if err != nil {
		return nil, snerr.Errorf(snerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(&server.Services{Notes: app.Store, Health: app.Health})
	return srv, nil
}

func serverConfig(cfg config.ServerConfig) server.Config {
	return server.Config{
		ListenAddr:  cfg.Listen,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	}
}
