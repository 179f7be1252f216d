// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package google_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/embedding"
	"github.com/OlesyaDud/smart-notes/internal/embedding/google"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func TestGoogleEmbedder_ImplementsInterface(t *testing.T) {
	e, err := google.New(embedding.Config{APIKey: "test-key"})
	require.NoError(t, err)
	var _ embedding.Embedder = e
}

func TestGoogleEmbedder_MissingAPIKey(t *testing.T) {
	_, err := google.New(embedding.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, snerr.IsInvalidInput(err))
	assert.Equal(t, "google", snerr.FieldsOf(err)["provider"])
}

func TestGoogleEmbedder_Defaults(t *testing.T) {
	e, err := google.New(embedding.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, google.DefaultModel, e.Model())
	assert.Equal(t, embedding.DefaultDimension, e.Dimension())
}

func TestGoogleEmbedder_CustomModel(t *testing.T) {
	e, err := google.New(embedding.Config{APIKey: "test-key", Model: "text-embedding-004", Dimension: 768})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-004", e.Model())
	assert.Equal(t, 768, e.Dimension())
}

func TestGoogleEmbedder_EmptyInput(t *testing.T) {
	e, err := google.New(embedding.Config{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "\n\t ")
	require.Error(t, err)
	assert.True(t, snerr.IsInvalidInput(err))
}

func TestGoogleEmbedder_RegisteredProvider(t *testing.T) {
	assert.Contains(t, embedding.Providers(), "google")
}
