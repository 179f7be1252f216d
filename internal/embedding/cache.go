// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package embedding

import (
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Cached memoises embeddings by exact text in a bounded LRU. Errors are
// never cached.
type Cached struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps next with an LRU of size entries.
func NewCached(next Embedder, size int) (*Cached, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, snerr.Wrapf(err, snerr.CodeConfigValidateInvalidValue, "embedding cache size %d", size)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Dimension() int { return c.next.Dimension() }
func (c *Cached) Model() string  { return c.next.Model() }

// Embed returns a copy of the cached vector so callers may mutate it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return slices.Clone(vec), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, slices.Clone(vec))
	return vec, nil
}

// Len reports the number of cached entries.
func (c *Cached) Len() int { return c.cache.Len() }
