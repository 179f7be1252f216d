// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes

import (
	"time"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

const (
	metaText      = "text"
	metaCreatedAt = "created_at"
)

// Note is a stored note.
type Note struct {
	ID        string
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Metadata is the payload stored alongside each vector.
type Metadata struct {
	Text      string
	CreatedAt time.Time
}

// Fields encodes m for the index.
func (m Metadata) Fields() map[string]string {
	return map[string]string{
		metaText:      m.Text,
		metaCreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ParseMetadata decodes index metadata. A missing created_at is tolerated
// for records written before it was recorded; missing text is not.
func ParseMetadata(fields map[string]string) (Metadata, error) {
	text, ok := fields[metaText]
	if !ok || text == "" {
		return Metadata{}, snerr.New(snerr.CodeIndexQueryFailure, "metadata has no text")
	}

	m := Metadata{Text: text}
	if raw := fields[metaCreatedAt]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Metadata{}, snerr.Wrap(err, snerr.CodeIndexQueryFailure, "parsing created_at")
		}
		m.CreatedAt = ts
	}
	return m, nil
}
