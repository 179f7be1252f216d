// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/OlesyaDud/smart-notes/internal/embedding"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// DefaultModel is used when the configuration names no model.
const DefaultModel = "text-embedding-ada-002"

func init() {
	embedding.RegisterProvider("openai", func(cfg embedding.Config) (embedding.Embedder, error) {
		return New(cfg)
	})
}

var _ embedding.Embedder = (*Embedder)(nil)

// Embedder implements embedding.Embedder with the OpenAI embeddings API.
type Embedder struct {
	client    openaisdk.Client
	model     string
	dimension int
}

// New creates an OpenAI embedder. Returns an error if the API key is missing.
func New(cfg embedding.Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, snerr.New(snerr.CodeEmbeddingRequestInvalid, "openai: missing api_key in config",
			snerr.FieldProvider("openai"))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = embedding.DefaultDimension
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{
		client:    openaisdk.NewClient(opts...),
		model:     model,
		dimension: dim,
	}, nil
}

func (e *Embedder) Dimension() int { return e.dimension }
func (e *Embedder) Model() string  { return e.model }

// Embed requests a single embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, snerr.New(snerr.CodeEmbeddingRequestInvalid, "openai: empty input",
			snerr.FieldProvider("openai"))
	}

	resp, err := e.client.Embeddings.New(ctx, buildParams(e.model, e.dimension, text))
	if err != nil {
		return nil, classify(ctx, err, e.model)
	}
	if len(resp.Data) == 0 {
		return nil, snerr.New(snerr.CodeEmbeddingResponseInvalid, "openai: response contained no embeddings",
			snerr.FieldProvider("openai"), snerr.FieldModel(e.model))
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, x := range raw {
		vec[i] = float32(x)
	}
	if err := embedding.CheckVector(vec, e.dimension, e.model); err != nil {
		return nil, err
	}
	return vec, nil
}

// buildParams only sets dimensions for models that accept it; ada-002
// rejects the field.
func buildParams(model string, dimension int, text string) openaisdk.EmbeddingNewParams {
	params := openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model:          openaisdk.EmbeddingModel(model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if strings.HasPrefix(model, "text-embedding-3") {
		params.Dimensions = openaisdk.Int(int64(dimension))
	}
	return params
}

func classify(ctx context.Context, err error, model string) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return snerr.Wrap(err, snerr.CodeEmbeddingRateExceeded, "openai: rate limited",
			snerr.FieldProvider("openai"), snerr.FieldModel(model))
	}
	return embedding.WrapUpstream(ctx, err, "openai", model)
}
