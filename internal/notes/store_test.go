// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/index"
	"github.com/OlesyaDud/smart-notes/internal/notes"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func TestNew_RejectsDimensionMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.Collection.Dimension = 1536
	idx := newMemIndex()

	_, err := notes.New(cfg, &lexiconEmbedder{}, idx, idx, notes.UUIDAllocator{})
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeNoteConfigInvalid))
}

func TestConfigValidate(t *testing.T) {
	assert.Empty(t, notes.DefaultConfig().Validate())

	cfg := notes.DefaultConfig()
	cfg.DefaultTopK = 0
	cfg.MaxTopK = -1
	cfg.EmbedTimeout = 0
	cfg.IndexTimeout = -time.Second
	cfg.Collection.Metric = "manhattan"
	assert.Len(t, cfg.Validate(), 5)
}

func TestAdd_ThenSearchFindsItFirst(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	for _, text := range []string{"Buy milk tomorrow", "Finish the quarterly report", "Milk the cows at dawn"} {
		_, err := s.Add(ctx, text)
		require.NoError(t, err)
	}

	results, err := s.Search(ctx, "Finish the quarterly report", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Finish the quarterly report", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	for _, r := range results[1:] {
		assert.LessOrEqual(t, r.Score, results[0].Score)
	}
}

func TestAdd_AssignsSequentialIDsAndTrims(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	first, err := s.Add(ctx, "  Buy milk tomorrow \n")
	require.NoError(t, err)
	second, err := s.Add(ctx, "Finish the quarterly report")
	require.NoError(t, err)

	assert.Equal(t, "note-0", first)
	assert.Equal(t, "note-1", second)
	assert.Equal(t, "Buy milk tomorrow", idx.records[first].Metadata["text"])
	assert.Equal(t, int32(2), idx.upserts.Load())
}

func TestAdd_RecordsCreationTime(t *testing.T) {
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	notes.SetNow(s, func() time.Time { return fixed })

	id, err := s.Add(context.Background(), "Buy cheese")
	require.NoError(t, err)

	meta, err := notes.ParseMetadata(idx.records[id].Metadata)
	require.NoError(t, err)
	assert.Equal(t, "Buy cheese", meta.Text)
	assert.True(t, fixed.Equal(meta.CreatedAt))
}

func TestAdd_EmptyTextIsValidationError(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		e := &lexiconEmbedder{}
		idx := newMemIndex()
		s := newTestStore(t, testConfig(), e, idx)

		_, err := s.Add(context.Background(), text)
		require.Error(t, err)
		assert.ErrorIs(t, err, notes.ErrValidation)
		assert.Equal(t, notes.KindValidation, notes.KindOf(err))
		assert.True(t, snerr.HasCode(err, snerr.CodeNoteAddInvalid))
		assert.Zero(t, e.calls.Load())
		assert.Zero(t, idx.upserts.Load())
	}
}

func TestSearch_EmptyQueryIsValidationError(t *testing.T) {
	e := &lexiconEmbedder{}
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), e, idx)

	_, err := s.Search(context.Background(), "  ", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrValidation)
	assert.True(t, snerr.IsInvalidInput(err))
	assert.Zero(t, e.calls.Load())
	assert.Zero(t, idx.queries.Load())
}

func TestSearch_EmptyIndexReturnsNoResults(t *testing.T) {
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, newMemIndex())

	results, err := s.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_TopKDefaultsAndClamp(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxTopK = 5
	idx := newMemIndex()
	s := newTestStore(t, cfg, &lexiconEmbedder{}, idx)

	for i := range 8 {
		_, err := s.Add(ctx, fmt.Sprintf("buy milk %d", i))
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		topK  int
		wantK int
	}{
		{"zero uses default", 0, notes.DefaultTopK},
		{"negative uses default", -4, notes.DefaultTopK},
		{"within bounds", 2, 2},
		{"above max is clamped", 1000, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Search(ctx, "milk", tt.topK)
			require.NoError(t, err)
			assert.Len(t, results, tt.wantK)
			assert.Equal(t, int32(tt.wantK), idx.lastTopK.Load())
			for i := 1; i < len(results); i++ {
				assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
			}
		})
	}
}

func TestSearch_TiesResolveByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, newMemIndex())

	first, err := s.Add(ctx, "Buy milk")
	require.NoError(t, err)
	second, err := s.Add(ctx, "buy MILK!")
	require.NoError(t, err)

	for range 5 {
		results, err := s.Search(ctx, "milk shopping", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, first, results[0].ID)
		assert.Equal(t, second, results[1].ID)
	}
}

func TestSearch_SkipsUnreadableMetadata(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	broken, err := s.Add(ctx, "Buy milk")
	require.NoError(t, err)
	kept, err := s.Add(ctx, "Buy cheese")
	require.NoError(t, err)
	idx.setMetadata(broken, map[string]string{"created_at": "2026-01-01T00:00:00Z"})

	results, err := s.Search(ctx, "dairy shopping", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept, results[0].ID)
}

func TestAdd_EmbeddingFailure(t *testing.T) {
	e := &lexiconEmbedder{err: snerr.New(snerr.CodeEmbeddingUpstreamFailure, "provider down")}
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), e, idx)

	_, err := s.Add(context.Background(), "Buy milk")
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrEmbedding)
	assert.True(t, notes.KindOf(err).Retryable())
	assert.True(t, snerr.IsUpstreamFailure(err))
	assert.Zero(t, idx.upserts.Load())
}

func TestAdd_EmbeddingTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.EmbedTimeout = 20 * time.Millisecond
	e := &lexiconEmbedder{delay: time.Second}
	idx := newMemIndex()
	s := newTestStore(t, cfg, e, idx)

	start := time.Now()
	_, err := s.Add(context.Background(), "Buy milk")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, notes.ErrEmbedding)
	assert.True(t, snerr.IsTimeout(err))
	assert.Zero(t, idx.upserts.Load())
}

func TestAdd_CallerCancellationPropagates(t *testing.T) {
	e := &lexiconEmbedder{delay: time.Second}
	s := newTestStore(t, testConfig(), e, newMemIndex())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Add(ctx, "Buy milk")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, notes.ErrEmbedding)
}

func TestAdd_WrongEmbeddingLength(t *testing.T) {
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), &lexiconEmbedder{dim: 3}, idx)

	_, err := s.Add(context.Background(), "Buy milk")
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrEmbedding)
	assert.True(t, snerr.HasCode(err, snerr.CodeEmbeddingResponseInvalid))
	assert.Zero(t, idx.upserts.Load())
}

func TestAdd_UpsertFailure(t *testing.T) {
	idx := newMemIndex()
	idx.upsertErr = errors.New("disk full")
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	_, err := s.Add(context.Background(), "Buy milk")
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrStorage)
	assert.Equal(t, notes.KindStorage, notes.KindOf(err))
	assert.True(t, snerr.HasCode(err, snerr.CodeIndexUpsertFailure))
	assert.NotEmpty(t, snerr.FieldsOf(err)["note_id"])

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCount)
}

func TestAdd_IDAllocationFailure(t *testing.T) {
	idx := newMemIndex()
	idx.statsErr = errors.New("locked")
	s, err := notes.New(testConfig(), &lexiconEmbedder{}, idx, idx, notes.NewCountAllocator(idx))
	require.NoError(t, err)

	_, err = s.Add(context.Background(), "Buy milk")
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrStorage)
	assert.Zero(t, idx.upserts.Load())
}

func TestSearch_QueryFailure(t *testing.T) {
	idx := newMemIndex()
	idx.queryErr = snerr.New(snerr.CodeIndexQueryFailure, "index unreachable")
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	_, err := s.Search(context.Background(), "milk", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrStorage)
	assert.True(t, notes.KindOf(err).Retryable())
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	e := &lexiconEmbedder{err: errors.New("boom")}
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), e, idx)

	_, err := s.Search(context.Background(), "milk", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrEmbedding)
	assert.Zero(t, idx.queries.Load())
}

func TestStats_Failure(t *testing.T) {
	idx := newMemIndex()
	idx.statsErr = errors.New("closed")
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	_, err := s.Stats(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrStorage)
	assert.True(t, snerr.HasCode(err, snerr.CodeIndexStatsFailure))
}

func TestEnsureIndex_Idempotent(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	require.NoError(t, s.EnsureIndex(ctx))
	require.NoError(t, s.EnsureIndex(ctx))
	assert.Equal(t, int32(2), idx.ensures.Load())
	require.NotNil(t, idx.spec)
	assert.Equal(t, "notes", idx.spec.Name)
}

func TestEnsureIndex_ConflictIsInfrastructureError(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	_, err := idx.EnsureCollection(ctx, index.CollectionSpec{Name: "notes", Dimension: 99, Metric: index.MetricCosine})
	require.NoError(t, err)
	s := newTestStore(t, testConfig(), &lexiconEmbedder{}, idx)

	err = s.EnsureIndex(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, notes.ErrInfrastructure)
	assert.False(t, notes.KindOf(err).Retryable())
	assert.True(t, snerr.IsConflict(err))
}

func TestConcurrentAdds_ProduceUniqueIDs(t *testing.T) {
	const n = 50

	allocators := map[string]func(idx *memIndex) notes.IDAllocator{
		"sequence": func(idx *memIndex) notes.IDAllocator { return notes.NewSequenceAllocator(idx) },
		"uuid":     func(*memIndex) notes.IDAllocator { return notes.UUIDAllocator{} },
	}

	for name, mk := range allocators {
		t.Run(name, func(t *testing.T) {
			idx := newMemIndex()
			s, err := notes.New(testConfig(), &lexiconEmbedder{}, idx, idx, mk(idx))
			require.NoError(t, err)

			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = map[string]struct{}{}
			)
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id, err := s.Add(context.Background(), fmt.Sprintf("note number %d", i))
					assert.NoError(t, err)
					mu.Lock()
					ids[id] = struct{}{}
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Len(t, ids, n)
			stats, err := s.Stats(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(n), stats.TotalCount)
		})
	}
}

func TestCountScheme_CollidesUnderConcurrency(t *testing.T) {
	const n = 4
	idx := newMemIndex()

	// Hold every caller at the count read until all have arrived, which is
	// the interleaving the count scheme cannot survive.
	var arrived sync.WaitGroup
	arrived.Add(n)
	idx.statsHook = func() {
		arrived.Done()
		arrived.Wait()
	}

	s, err := notes.New(testConfig(), &lexiconEmbedder{}, idx, idx, notes.NewCountAllocator(idx))
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]int{}
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Add(context.Background(), fmt.Sprintf("note %d", i))
			assert.NoError(t, err)
			mu.Lock()
			ids[id]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"note-0": n}, ids)
	idx.statsHook = nil
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalCount, "every add overwrote the same record")
}

func TestNewIDAllocator(t *testing.T) {
	idx := newMemIndex()

	for scheme, want := range map[string]any{
		"":                      &notes.SequenceAllocator{},
		notes.IDSchemeSequence: &notes.SequenceAllocator{},
		notes.IDSchemeUUID:     notes.UUIDAllocator{},
		notes.IDSchemeCount:    &notes.CountAllocator{},
	} {
		a, err := notes.NewIDAllocator(scheme, idx)
		require.NoError(t, err)
		assert.IsType(t, want, a)
	}

	_, err := notes.NewIDAllocator("random", idx)
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeNoteConfigInvalid))
}

func TestUUIDAllocator_Format(t *testing.T) {
	id, err := notes.UUIDAllocator{}.Allocate(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^note-[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}
