// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OlesyaDud/smart-notes/internal/index"
	"github.com/OlesyaDud/smart-notes/internal/notes"
	"github.com/OlesyaDud/smart-notes/internal/server"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec registers every route against a stub note store and returns
// the OpenAPI document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, snerr.Errorf(snerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(&server.Services{Notes: stubNotes{}})

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stubNotes is never called during generation.
type stubNotes struct{}

func (stubNotes) Add(context.Context, string) (string, error) { return "", nil }
func (stubNotes) Search(context.Context, string, int) ([]notes.Result, error) {
	return nil, nil
}
func (stubNotes) Stats(context.Context) (index.Stats, error) { return index.Stats{}, nil }
