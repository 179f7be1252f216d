// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OlesyaDud/smart-notes/internal/notes"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func newBootstrapCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the note index if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			spec := app.Store.Config().Collection
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Index %s ready (dimension %d, metric %s)\n",
				spec.Name, spec.Dimension, spec.Metric)
			return err
		},
	}
}

func newAddCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text...>",
		Short: "Add a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return snerr.New(snerr.CodeCLIInputInvalid, "note text is empty")
			}

			app, err := openApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			id, err := app.Store.Add(cmd.Context(), text)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added note %s\n", id)
			return err
		},
	}
}

func newSearchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Find the notes most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				return snerr.New(snerr.CodeCLIInputInvalid, "query is empty")
			}
			topK, _ := cmd.Flags().GetInt("top-k")
			asJSON, _ := cmd.Flags().GetBool("json")

			app, err := openApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			results, err := app.Store.Search(cmd.Context(), query, topK)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, results)
			}
			return printResults(cmd, results)
		},
	}

	cmd.Flags().IntP("top-k", "k", 0, "number of results (0 uses notes.default_top_k)")
	cmd.Flags().Bool("json", false, "print results as JSON")
	return cmd
}

func printResults(cmd *cobra.Command, results []notes.Result) error {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		_, err := fmt.Fprintln(out, "No matching notes found.")
		return err
	}
	for i, r := range results {
		if _, err := fmt.Fprintf(out, "%d. [%.2f] %s (%s)\n", i+1, r.Score, r.Text, r.ID); err != nil {
			return err
		}
	}
	return nil
}

func newStatsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show note index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			app, err := openApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			stats, err := app.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"collection":  app.Config.Index.Name,
					"total_count": stats.TotalCount,
					"dimension":   stats.Dimension,
					"metric":      stats.Metric,
				})
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Collection: %s\n", app.Config.Index.Name)
			_, _ = fmt.Fprintf(out, "Notes:      %d\n", stats.TotalCount)
			_, _ = fmt.Fprintf(out, "Dimension:  %d\n", stats.Dimension)
			_, err = fmt.Fprintf(out, "Metric:     %s\n", stats.Metric)
			return err
		},
	}

	cmd.Flags().Bool("json", false, "print statistics as JSON")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
