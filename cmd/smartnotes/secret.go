// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OlesyaDud/smart-notes/internal/secrets"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: `Store, inspect and delete credentials kept under the smartnotes
service in the operating system keyring. Config values of the form
keyring://smartnotes/<name> resolve to these secrets.`,
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret, reading the value from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSecretSet,
	}
}

func newSecretGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a stored secret, masked unless --reveal is set",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretGet,
	}
	cmd.Flags().Bool("reveal", false, "print the secret in full")
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		Args:  cobra.NoArgs,
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Enter value for %s: ", name)
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return snerr.Errorf(snerr.CodeCLIInputInvalid, "reading secret value: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return snerr.Errorf(snerr.CodeCLIInputInvalid, "secret %q value is empty", name)
	}

	if err := secretStoreFactory().Store(secrets.DefaultService, name, value); err != nil {
		return snerr.Errorf(snerr.CodeSecretStoreFailure, "storing secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s (%s)\n", name, secrets.KeyringURI(secrets.DefaultService, name))
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	name := args[0]
	reveal, _ := cmd.Flags().GetBool("reveal")

	value, err := secretStoreFactory().Retrieve(secrets.DefaultService, name)
	if err != nil {
		if snerr.HasCode(err, snerr.CodeSecretNotFound) {
			return snerr.Errorf(snerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return snerr.Errorf(snerr.CodeSecretResolveFailure, "retrieving secret %q: %w", name, err)
	}

	if !reveal {
		value = maskSecret(value)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.DefaultService)
	if err != nil {
		return snerr.Errorf(snerr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(secrets.DefaultService, name); err != nil {
		if snerr.HasCode(err, snerr.CodeSecretNotFound) {
			return snerr.Errorf(snerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return snerr.Errorf(snerr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}

// maskSecret keeps the last four characters of values long enough that
// doing so reveals little.
func maskSecret(v string) string {
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
