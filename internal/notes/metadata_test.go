// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/notes"
)

func TestMetadataFields(t *testing.T) {
	ts := time.Date(2026, 5, 6, 7, 8, 9, 10, time.FixedZone("X", 3600))
	fields := notes.Metadata{Text: "Buy milk", CreatedAt: ts}.Fields()

	assert.Equal(t, "Buy milk", fields["text"])
	assert.Equal(t, "2026-05-06T06:08:09.00000001Z", fields["created_at"])

	parsed, err := notes.ParseMetadata(fields)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", parsed.Text)
	assert.True(t, ts.Equal(parsed.CreatedAt))
}

func TestParseMetadata(t *testing.T) {
	m, err := notes.ParseMetadata(map[string]string{"text": "legacy note"})
	require.NoError(t, err)
	assert.Equal(t, "legacy note", m.Text)
	assert.True(t, m.CreatedAt.IsZero())

	_, err = notes.ParseMetadata(nil)
	assert.Error(t, err)

	_, err = notes.ParseMetadata(map[string]string{"text": ""})
	assert.Error(t, err)

	_, err = notes.ParseMetadata(map[string]string{"text": "x", "created_at": "yesterday"})
	assert.Error(t, err)
}
