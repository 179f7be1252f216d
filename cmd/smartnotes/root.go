// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OlesyaDud/smart-notes/internal/config"
	"github.com/OlesyaDud/smart-notes/internal/secrets"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"

	// Registered backends and embedding providers.
	_ "github.com/OlesyaDud/smart-notes/internal/embedding/google"
	_ "github.com/OlesyaDud/smart-notes/internal/embedding/local"
	_ "github.com/OlesyaDud/smart-notes/internal/embedding/openai"
	_ "github.com/OlesyaDud/smart-notes/internal/index/bolt"
	_ "github.com/OlesyaDud/smart-notes/internal/index/sqlite"
)

// secretStoreFactory creates the secrets.Store used for keyring:// values
// and the secret commands. Tests replace it.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// NewRootCmd creates the root smartnotes command with all subcommands
// registered. Each root gets its own Viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "smartnotes",
		Short:         "Smart Notes: a semantic note store",
		Long:          "Smart Notes stores short notes as embeddings and finds them again by meaning, from the CLI, an HTTP API or a Telegram bot.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd, v); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), config.LoggingConfig{
				Level:  v.GetString("logging.level"),
				Format: v.GetString("logging.format"),
			}, v.GetBool("verbose"))
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newBootstrapCmd(v),
		newAddCmd(v),
		newSearchCmd(v),
		newStatsCmd(v),
		newServeCmd(v),
		newBotCmd(v),
		newConfigCmd(v),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up v with defaults, env bindings, flag bindings and the
// optional config file so the precedence flag > env > file > defaults is
// handled uniformly.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return snerr.Errorf(snerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset so the bare name never matches the
		// smartnotes binary in the working directory.
		v.SetConfigName("smartnotes")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/smartnotes")
		v.AddConfigPath("/etc/smartnotes")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return snerr.Errorf(snerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if err := bootstrapDefaultConfig(v); err != nil {
				return err
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return snerr.Errorf(snerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	return nil
}

// bootstrapDefaultConfig writes the commented default config on first run
// and reads it back.
func bootstrapDefaultConfig(v *viper.Viper) error {
	path, err := config.DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return nil
	}
	if written := config.BootstrapConfig(path); written != "" {
		v.SetConfigFile(written)
		if err := v.ReadInConfig(); err != nil {
			return snerr.Errorf(snerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
		}
	}
	return nil
}

// loadConfig resolves keyring:// secrets held by v and decodes the
// validated configuration.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
		slog.Warn("some keyring secrets could not be resolved", "error", err)
	}

	return config.FromViper(v)
}
