// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OlesyaDud/smart-notes/internal/chat"
	"github.com/OlesyaDud/smart-notes/internal/chat/telegram"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func newBotCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long:  "Wire the note store and answer Telegram commands and buttons until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			tg := app.Config.Telegram
			client, err := telegram.NewClient(tg.BaseURL, tg.Token, nil)
			if err != nil {
				return snerr.Errorf(snerr.CodeCLISetupFailure, "creating telegram client: %w", err)
			}

			handler := chat.NewHandler(app.Store, chat.DefaultRetryPolicy(), app.Config.Notes.DefaultTopK)
			bot := telegram.NewBot(client, handler, telegram.BotConfig{
				PollTimeout: tg.PollTimeout,
				Workers:     tg.Workers,
			})
			return bot.Run(ctx)
		},
	}
}
