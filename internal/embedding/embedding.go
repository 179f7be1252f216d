// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package embedding

import (
	"context"
	"errors"
	"sort"
	"sync"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// DefaultDimension matches text-embedding-ada-002.
const DefaultDimension = 1536

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	// Embed returns a vector of exactly Dimension() components.
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string // empty selects the provider's default model
	APIKey     string
	BaseURL    string
	Dimension  int
	MaxRetries int
}

// Factory builds an Embedder from cfg.
type Factory func(cfg Config) (Embedder, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterProvider registers a factory for a named provider. Provider
// packages call this from init(). This function is goroutine-safe.
func RegisterProvider(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers returns the registered provider names in sorted order.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the embedder named by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, snerr.New(snerr.CodeEmbeddingRequestInvalid, "unsupported embedding provider",
			snerr.FieldProvider(cfg.Provider))
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	return f(cfg)
}

// CheckVector fails with a response-invalid code unless v has exactly
// dimension components.
func CheckVector(v []float32, dimension int, model string) error {
	if len(v) == dimension {
		return nil
	}
	return snerr.New(snerr.CodeEmbeddingResponseInvalid, "embedding has wrong dimension",
		snerr.FieldModel(model), snerr.Field("expected", dimension), snerr.Field("actual", len(v)))
}

// WrapUpstream classifies a provider call failure. Deadline expiry maps to
// the timeout code; everything else is an upstream failure.
func WrapUpstream(ctx context.Context, err error, provider, model string) error {
	if err == nil {
		return nil
	}
	code := snerr.CodeEmbeddingUpstreamFailure
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		code = snerr.CodeEmbeddingRequestTimeout
	}
	return snerr.Wrap(err, code, provider+": embedding request failed",
		snerr.FieldProvider(provider), snerr.FieldModel(model))
}
