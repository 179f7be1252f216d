// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OlesyaDud/smart-notes/internal/notes"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      notes.Kind
		retryable bool
	}{
		{"nil", nil, notes.KindUnknown, false},
		{"plain", errors.New("x"), notes.KindUnknown, false},
		{"validation", fmt.Errorf("adding: %w", notes.ErrValidation), notes.KindValidation, false},
		{"embedding", snerr.Errorf(snerr.CodeEmbeddingUpstreamFailure, "e: %w", notes.ErrEmbedding), notes.KindEmbedding, true},
		{"storage", snerr.Errorf(snerr.CodeIndexUpsertFailure, "s: %w", notes.ErrStorage), notes.KindStorage, true},
		{"infrastructure", snerr.Errorf(snerr.CodeIndexCollectionBootstrapErr, "i: %w", notes.ErrInfrastructure), notes.KindInfrastructure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := notes.KindOf(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.retryable, kind.Retryable())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", notes.KindValidation.String())
	assert.Equal(t, "embedding", notes.KindEmbedding.String())
	assert.Equal(t, "storage", notes.KindStorage.String())
	assert.Equal(t, "infrastructure", notes.KindInfrastructure.String())
	assert.Equal(t, "unknown", notes.KindUnknown.String())
}
