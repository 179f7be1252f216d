// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/OlesyaDud/smart-notes/internal/index"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Id schemes accepted by NewIDAllocator.
const (
	IDSchemeSequence = "sequence"
	IDSchemeUUID     = "uuid"
	IDSchemeCount    = "count"
)

// idPrefix is shared by every scheme so ids stay recognisable.
const idPrefix = "note-"

// IDAllocator assigns ids to new notes.
type IDAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// SequenceAllocator draws ids from the backend's atomic counter. Ids are
// unique across concurrent callers and processes; a failed upsert leaves a
// gap.
type SequenceAllocator struct {
	seq index.Sequencer
}

func NewSequenceAllocator(seq index.Sequencer) *SequenceAllocator {
	return &SequenceAllocator{seq: seq}
}

func (a *SequenceAllocator) Allocate(ctx context.Context) (string, error) {
	n, err := a.seq.NextSequence(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", idPrefix, n), nil
}

// UUIDAllocator produces time-ordered random ids.
type UUIDAllocator struct{}

func (UUIDAllocator) Allocate(context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", snerr.Wrap(err, snerr.CodeIndexSequenceFailure, "generating uuid")
	}
	return idPrefix + id.String(), nil
}

// CountAllocator derives the id from the current record count. Two
// concurrent adds can observe the same count and overwrite each other, so
// it is only offered for compatibility with existing note-<count> data.
type CountAllocator struct {
	idx index.Index
}

func NewCountAllocator(idx index.Index) *CountAllocator {
	return &CountAllocator{idx: idx}
}

func (a *CountAllocator) Allocate(ctx context.Context) (string, error) {
	stats, err := a.idx.DescribeStats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", idPrefix, stats.TotalCount), nil
}

// NewIDAllocator builds the allocator for scheme over col.
func NewIDAllocator(scheme string, col index.Collection) (IDAllocator, error) {
	switch scheme {
	case "", IDSchemeSequence:
		return NewSequenceAllocator(col), nil
	case IDSchemeUUID:
		return UUIDAllocator{}, nil
	case IDSchemeCount:
		slog.Warn("count id scheme is not safe under concurrent adds", "scheme", scheme)
		return NewCountAllocator(col), nil
	default:
		return nil, snerr.New(snerr.CodeNoteConfigInvalid, "unknown id scheme", snerr.Field("scheme", scheme))
	}
}
