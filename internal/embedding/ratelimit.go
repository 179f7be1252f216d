// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package embedding

import (
	"context"

	"golang.org/x/time/rate"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// RateLimited throttles calls to the wrapped embedder. Callers wait for a
// token until their context expires.
type RateLimited struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
func NewRateLimited(next Embedder, rps float64, burst int) *RateLimited {
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1))}
}

func (r *RateLimited) Dimension() int { return r.next.Dimension() }
func (r *RateLimited) Model() string  { return r.next.Model() }

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		code := snerr.CodeEmbeddingRateExceeded
		if ctx.Err() != nil {
			code = snerr.CodeEmbeddingRequestTimeout
		}
		return nil, snerr.Wrap(err, code, "waiting for embedding rate limit", snerr.FieldModel(r.next.Model()))
	}
	return r.next.Embed(ctx, text)
}
