// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/OlesyaDud/smart-notes/internal/embedding"
	"github.com/OlesyaDud/smart-notes/internal/index"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Defaults for Config.
const (
	DefaultTopK         = 3
	DefaultMaxTopK      = 100
	DefaultEmbedTimeout = 15 * time.Second
	DefaultIndexTimeout = 10 * time.Second
	DefaultCollection   = "smart-notes"
)

// embeddingLogHead is how many leading components of a new embedding are
// logged at debug level.
const embeddingLogHead = 10

// Config holds the immutable parameters of a Store.
type Config struct {
	Collection   index.CollectionSpec
	DefaultTopK  int
	MaxTopK      int
	EmbedTimeout time.Duration
	IndexTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Collection: index.CollectionSpec{
			Name:      DefaultCollection,
			Dimension: embedding.DefaultDimension,
			Metric:    index.MetricCosine,
		},
		DefaultTopK:  DefaultTopK,
		MaxTopK:      DefaultMaxTopK,
		EmbedTimeout: DefaultEmbedTimeout,
		IndexTimeout: DefaultIndexTimeout,
	}
}

// Validate returns every problem with c.
func (c Config) Validate() []error {
	var errs []error
	if err := index.ValidateSpec(c.Collection); err != nil {
		errs = append(errs, err)
	}
	if c.DefaultTopK <= 0 {
		errs = append(errs, snerr.Errorf(snerr.CodeNoteConfigInvalid, "default_top_k must be positive, got %d", c.DefaultTopK))
	}
	if c.MaxTopK < c.DefaultTopK {
		errs = append(errs, snerr.Errorf(snerr.CodeNoteConfigInvalid,
			"max_top_k (%d) must be at least default_top_k (%d)", c.MaxTopK, c.DefaultTopK))
	}
	if c.EmbedTimeout <= 0 {
		errs = append(errs, snerr.Errorf(snerr.CodeNoteConfigInvalid, "embed_timeout must be positive, got %s", c.EmbedTimeout))
	}
	if c.IndexTimeout <= 0 {
		errs = append(errs, snerr.Errorf(snerr.CodeNoteConfigInvalid, "index_timeout must be positive, got %s", c.IndexTimeout))
	}
	return errs
}

// Result is one ranked search hit.
type Result struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Store is the semantic note store. It is safe for concurrent use.
type Store struct {
	cfg      Config
	embedder embedding.Embedder
	prov     index.Provisioner
	idx      index.Index
	ids      IDAllocator
	now      func() time.Time
}

// New wires a Store. The embedder's dimension must match the collection's.
func New(cfg Config, embedder embedding.Embedder, prov index.Provisioner, idx index.Index, ids IDAllocator) (*Store, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, snerr.Join(errs...)
	}
	if embedder.Dimension() != cfg.Collection.Dimension {
		return nil, snerr.New(snerr.CodeNoteConfigInvalid, "embedder dimension does not match collection",
			snerr.FieldModel(embedder.Model()),
			snerr.Field("embedder_dimension", embedder.Dimension()),
			snerr.Field("collection_dimension", cfg.Collection.Dimension))
	}
	return &Store{
		cfg:      cfg,
		embedder: embedder,
		prov:     prov,
		idx:      idx,
		ids:      ids,
		now:      time.Now,
	}, nil
}

// Config returns the store configuration.
func (s *Store) Config() Config { return s.cfg }

// EnsureIndex creates the collection if it does not exist. It is safe to
// call on every startup.
func (s *Store) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.IndexTimeout)
	defer cancel()

	spec := s.cfg.Collection
	created, err := s.prov.EnsureCollection(ctx, spec)
	if err != nil {
		return snerr.Errorf(snerr.CodeIndexCollectionBootstrapErr, "ensuring index %s: %w: %w",
			spec.Name, ErrInfrastructure, err)
	}

	if created {
		slog.Info("created index collection", "collection", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
	} else {
		slog.Debug("index collection already exists", "collection", spec.Name)
	}
	return nil
}

// Add embeds text and stores it as a new note, returning its id. Nothing
// is written unless both the embedding and the upsert succeed.
func (s *Store) Add(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", snerr.Errorf(snerr.CodeNoteAddInvalid, "adding note: %w: note text is empty", ErrValidation)
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return "", snerr.With(err, snerr.Field("op", "add"))
	}
	slog.Debug("embedded note", "model", s.embedder.Model(), "dims", len(vec), "head", vec[:min(embeddingLogHead, len(vec))])

	ictx, cancel := context.WithTimeout(ctx, s.cfg.IndexTimeout)
	defer cancel()

	id, err := s.ids.Allocate(ictx)
	if err != nil {
		return "", storageError(ictx, snerr.CodeIndexSequenceFailure, "allocating note id", err)
	}

	meta := Metadata{Text: text, CreatedAt: s.now().UTC()}
	if err := s.idx.Upsert(ictx, index.Record{ID: id, Vector: vec, Metadata: meta.Fields()}); err != nil {
		return "", snerr.With(storageError(ictx, snerr.CodeIndexUpsertFailure, "storing note", err), snerr.FieldNoteID(id))
	}

	slog.Info("note added", "id", id, "collection", s.cfg.Collection.Name)
	return id, nil
}

// Search returns up to topK notes most similar to query, best first.
// topK <= 0 selects the configured default; values above the configured
// maximum are clamped.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, snerr.Errorf(snerr.CodeNoteSearchInvalid, "searching notes: %w: query is empty", ErrValidation)
	}
	k := s.clampTopK(topK)

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, snerr.With(err, snerr.Field("op", "search"))
	}

	ictx, cancel := context.WithTimeout(ctx, s.cfg.IndexTimeout)
	defer cancel()

	matches, err := s.idx.Query(ictx, index.Query{Vector: vec, TopK: k, IncludeMetadata: true})
	if err != nil {
		return nil, storageError(ictx, snerr.CodeIndexQueryFailure, "searching notes", err)
	}

	matches = append([]index.Match(nil), matches...)
	index.SortMatches(matches)

	results := make([]Result, 0, min(k, len(matches)))
	for _, m := range matches {
		if len(results) == k {
			break
		}
		meta, err := ParseMetadata(m.Metadata)
		if err != nil {
			slog.Warn("skipping match with unreadable metadata", "id", m.ID, "error", err)
			continue
		}
		results = append(results, Result{ID: m.ID, Text: meta.Text, Score: m.Score})
	}
	return results, nil
}

// Stats describes the underlying collection.
func (s *Store) Stats(ctx context.Context) (index.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.IndexTimeout)
	defer cancel()

	stats, err := s.idx.DescribeStats(ctx)
	if err != nil {
		return index.Stats{}, storageError(ctx, snerr.CodeIndexStatsFailure, "describing index", err)
	}
	return stats, nil
}

func (s *Store) clampTopK(topK int) int {
	if topK <= 0 {
		return s.cfg.DefaultTopK
	}
	return min(topK, s.cfg.MaxTopK)
}

// embed runs the embedder under the embed timeout and checks the result
// length.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		code := snerr.CodeEmbeddingUpstreamFailure
		if timedOut(ctx, err) {
			code = snerr.CodeEmbeddingRequestTimeout
		}
		return nil, snerr.Errorf(code, "embedding text: %w: %w", ErrEmbedding, err)
	}

	if len(vec) != s.cfg.Collection.Dimension {
		return nil, snerr.Errorf(snerr.CodeEmbeddingResponseInvalid,
			"embedding text: %w: embedder returned %d dimensions, want %d",
			ErrEmbedding, len(vec), s.cfg.Collection.Dimension)
	}
	return vec, nil
}

func storageError(ctx context.Context, code snerr.Code, msg string, err error) error {
	if timedOut(ctx, err) {
		code = snerr.CodeIndexRequestTimeout
	}
	return snerr.Errorf(code, "%s: %w: %w", msg, ErrStorage, err)
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
