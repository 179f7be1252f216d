// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/OlesyaDud/smart-notes/internal/config"
	"github.com/OlesyaDud/smart-notes/internal/embedding"
	"github.com/OlesyaDud/smart-notes/internal/index"
	"github.com/OlesyaDud/smart-notes/internal/notes"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// App holds the wired note store and the resources it owns.
type App struct {
	Store   *notes.Store
	Backend index.Backend
	Health  *embedding.Monitored
	Config  *config.Config
}

// Wire opens the index backend, builds the embedder chain and returns a
// store whose collection has been provisioned.
func Wire(ctx context.Context, cfg *config.Config) (*App, error) {
	backend, err := index.Open(index.StorageConfig{Backend: cfg.Storage.Backend, Path: cfg.Storage.Path})
	if err != nil {
		return nil, snerr.Errorf(snerr.CodeCLISetupFailure, "opening index backend: %w", err)
	}

	app, err := wireStore(ctx, cfg, backend)
	if err != nil {
		return nil, errors.Join(err, backend.Close())
	}
	return app, nil
}

func wireStore(ctx context.Context, cfg *config.Config, backend index.Backend) (*App, error) {
	monitored, embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	col := backend.Collection(cfg.Index.Name)
	ids, err := notes.NewIDAllocator(cfg.Notes.IDScheme, col)
	if err != nil {
		return nil, snerr.Errorf(snerr.CodeCLISetupFailure, "creating id allocator: %w", err)
	}

	store, err := notes.New(notesConfig(cfg), embedder, backend, col, ids)
	if err != nil {
		return nil, snerr.Errorf(snerr.CodeCLISetupFailure, "creating note store: %w", err)
	}
	if err := store.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	slog.Debug("note store ready",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"provider", cfg.Embedding.Provider,
		"model", embedder.Model(),
		"collection", cfg.Index.Name)

	return &App{Store: store, Backend: backend, Health: monitored, Config: cfg}, nil
}

// newEmbedder builds provider -> health monitor -> rate limiter -> cache.
// The limiter and cache are skipped when disabled in cfg.
func newEmbedder(cfg *config.Config) (*embedding.Monitored, embedding.Embedder, error) {
	base, err := embedding.New(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimension:  cfg.Index.Dimension,
		MaxRetries: cfg.Embedding.MaxRetries,
	})
	if err != nil {
		return nil, nil, snerr.Errorf(snerr.CodeCLISetupFailure, "creating embedder: %w", err)
	}

	tracker, err := embedding.NewHealthTracker(embedding.DefaultHealthCooldown)
	if err != nil {
		return nil, nil, snerr.Errorf(snerr.CodeCLISetupFailure, "creating health tracker: %w", err)
	}
	monitored := embedding.NewMonitored(base, tracker)

	var e embedding.Embedder = monitored
	if cfg.Embedding.RateLimitRPS > 0 {
		e = embedding.NewRateLimited(e, cfg.Embedding.RateLimitRPS, cfg.Embedding.RateLimitBurst)
	}
	if cfg.Embedding.CacheSize > 0 {
		cached, err := embedding.NewCached(e, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, nil, snerr.Errorf(snerr.CodeCLISetupFailure, "creating embedding cache: %w", err)
		}
		e = cached
	}
	return monitored, e, nil
}

func notesConfig(cfg *config.Config) notes.Config {
	return notes.Config{
		Collection: index.CollectionSpec{
			Name:      cfg.Index.Name,
			Dimension: cfg.Index.Dimension,
			Metric:    index.Metric(cfg.Index.Metric),
		},
		DefaultTopK:  cfg.Notes.DefaultTopK,
		MaxTopK:      cfg.Notes.MaxTopK,
		EmbedTimeout: cfg.Notes.EmbedTimeout,
		IndexTimeout: cfg.Notes.IndexTimeout,
	}
}

// Close releases the index backend.
func (a *App) Close() error {
	return a.Backend.Close()
}

// openApp loads the configuration held by v and wires the store.
func openApp(ctx context.Context, v *viper.Viper) (*App, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	return Wire(ctx, cfg)
}
