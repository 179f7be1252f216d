// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

// Package local provides an offline embedder based on feature hashing. It
// captures lexical overlap only and exists for development, demos and
// tests where no embedding API is reachable.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/OlesyaDud/smart-notes/internal/embedding"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Model is the name reported by the hashing embedder.
const Model = "local-hash"

func init() {
	embedding.RegisterProvider("local", func(cfg embedding.Config) (embedding.Embedder, error) {
		return New(cfg.Dimension), nil
	})
}

var _ embedding.Embedder = (*Embedder)(nil)

// Embedder hashes word unigrams and character trigrams into a fixed number
// of signed buckets and L2-normalises the result.
type Embedder struct {
	dimension int
}

// New returns a hashing embedder producing dimension-length vectors.
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = embedding.DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Dimension() int { return e.dimension }
func (e *Embedder) Model() string  { return Model }

// Embed is deterministic and never blocks.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, embedding.WrapUpstream(ctx, err, "local", Model)
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, snerr.New(snerr.CodeEmbeddingRequestInvalid, "local: empty input",
			snerr.FieldProvider("local"))
	}

	vec := make([]float32, e.dimension)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		words = []string{text}
	}

	for _, w := range words {
		e.add(vec, "w:"+w, 2)
		padded := []rune("^" + w + "$")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(vec, "t:"+string(padded[i:i+3]), 1)
		}
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		// Every feature cancelled out; keep the vector usable for cosine.
		vec[0], norm = 1, 1
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}
