// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package google

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/OlesyaDud/smart-notes/internal/embedding"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// DefaultModel is used when the configuration names no model.
const DefaultModel = "gemini-embedding-001"

func init() {
	embedding.RegisterProvider("google", func(cfg embedding.Config) (embedding.Embedder, error) {
		return New(cfg)
	})
}

var _ embedding.Embedder = (*Embedder)(nil)

// Embedder implements embedding.Embedder with the Gemini embedContent API.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// New creates a Google embedder. Returns an error if the API key is missing.
func New(cfg embedding.Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, snerr.New(snerr.CodeEmbeddingRequestInvalid, "google: missing api_key in config",
			snerr.FieldProvider("google"))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, snerr.Wrapf(err, snerr.CodeEmbeddingUpstreamFailure, "google: creating client")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = embedding.DefaultDimension
	}

	return &Embedder{client: client, model: model, dimension: dim}, nil
}

func (e *Embedder) Dimension() int { return e.dimension }
func (e *Embedder) Model() string  { return e.model }

// Embed requests a single embedding for text, truncated server-side to the
// configured dimension.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, snerr.New(snerr.CodeEmbeddingRequestInvalid, "google: empty input",
			snerr.FieldProvider("google"))
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(e.dimension)),
	})
	if err != nil {
		if statusOf(err) == http.StatusTooManyRequests {
			return nil, snerr.Wrap(err, snerr.CodeEmbeddingRateExceeded, "google: rate limited",
				snerr.FieldProvider("google"), snerr.FieldModel(e.model))
		}
		return nil, embedding.WrapUpstream(ctx, err, "google", e.model)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, snerr.New(snerr.CodeEmbeddingResponseInvalid, "google: response contained no embeddings",
			snerr.FieldProvider("google"), snerr.FieldModel(e.model))
	}

	vec := resp.Embeddings[0].Values
	if err := embedding.CheckVector(vec, e.dimension, e.model); err != nil {
		return nil, err
	}
	return vec, nil
}

// statusOf returns the HTTP status of a Gemini API error, or 0.
func statusOf(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
