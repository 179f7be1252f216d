// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

// Package indextest holds the behaviour every index.Backend must share.
package indextest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/index"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Opener opens a backend at path. Calling it twice with the same path must
// reopen the same data.
type Opener func(t *testing.T, path string) index.Backend

var testSpec = index.CollectionSpec{Name: "notes", Dimension: 3, Metric: index.MetricCosine}

// Run exercises the index contract against the backend returned by open.
func Run(t *testing.T, open Opener) {
	t.Run("EnsureCollectionIsIdempotent", func(t *testing.T) { testEnsureIdempotent(t, open) })
	t.Run("EnsureCollectionConflict", func(t *testing.T) { testEnsureConflict(t, open) })
	t.Run("EnsureCollectionInvalid", func(t *testing.T) { testEnsureInvalid(t, open) })
	t.Run("MissingCollection", func(t *testing.T) { testMissingCollection(t, open) })
	t.Run("EmptyQuery", func(t *testing.T) { testEmptyQuery(t, open) })
	t.Run("SelfSimilarityRanksFirst", func(t *testing.T) { testSelfSimilarity(t, open) })
	t.Run("TopKBound", func(t *testing.T) { testTopKBound(t, open) })
	t.Run("MetadataRoundTrip", func(t *testing.T) { testMetadata(t, open) })
	t.Run("UpsertReplaces", func(t *testing.T) { testUpsertReplaces(t, open) })
	t.Run("DimensionMismatch", func(t *testing.T) { testDimensionMismatch(t, open) })
	t.Run("TiesBreakByInsertionOrder", func(t *testing.T) { testTieBreak(t, open) })
	t.Run("EuclideanScores", func(t *testing.T) { testEuclidean(t, open) })
	t.Run("SequenceSeededFromCount", func(t *testing.T) { testSequenceSeed(t, open) })
	t.Run("SequenceConcurrent", func(t *testing.T) { testSequenceConcurrent(t, open) })
	t.Run("Persistence", func(t *testing.T) { testPersistence(t, open) })
}

func setup(t *testing.T, open Opener, spec index.CollectionSpec) (index.Backend, index.Collection) {
	t.Helper()
	b := open(t, filepath.Join(t.TempDir(), "index.db"))
	_, err := b.EnsureCollection(context.Background(), spec)
	require.NoError(t, err)
	return b, b.Collection(spec.Name)
}

func upsert(t *testing.T, c index.Index, id string, v []float32) {
	t.Helper()
	require.NoError(t, c.Upsert(context.Background(), index.Record{
		ID:       id,
		Vector:   v,
		Metadata: map[string]string{"text": id},
	}))
}

func testEnsureIdempotent(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t, filepath.Join(t.TempDir(), "index.db"))

	created, err := b.EnsureCollection(ctx, testSpec)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = b.EnsureCollection(ctx, testSpec)
	require.NoError(t, err)
	assert.False(t, created)

	stats, err := b.Collection(testSpec.Name).DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCount)
	assert.Equal(t, 3, stats.Dimension)
	assert.Equal(t, index.MetricCosine, stats.Metric)
}

func testEnsureConflict(t *testing.T, open Opener) {
	ctx := context.Background()
	b, _ := setup(t, open, testSpec)

	_, err := b.EnsureCollection(ctx, index.CollectionSpec{Name: "notes", Dimension: 4, Metric: index.MetricCosine})
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeIndexCollectionConflict))

	_, err = b.EnsureCollection(ctx, index.CollectionSpec{Name: "notes", Dimension: 3, Metric: index.MetricEuclidean})
	require.Error(t, err)
	assert.True(t, snerr.IsConflict(err))
}

func testEnsureInvalid(t *testing.T, open Opener) {
	b := open(t, filepath.Join(t.TempDir(), "index.db"))

	for _, spec := range []index.CollectionSpec{
		{Name: "", Dimension: 3, Metric: index.MetricCosine},
		{Name: "Bad_Name", Dimension: 3, Metric: index.MetricCosine},
		{Name: "notes", Dimension: 0, Metric: index.MetricCosine},
		{Name: "notes", Dimension: 3, Metric: "dotproduct"},
	} {
		_, err := b.EnsureCollection(context.Background(), spec)
		require.Error(t, err, "spec %+v", spec)
		assert.True(t, snerr.HasCode(err, snerr.CodeIndexCollectionInvalid))
	}
}

func testMissingCollection(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t, filepath.Join(t.TempDir(), "index.db"))
	c := b.Collection("absent")

	_, err := c.Query(ctx, index.Query{Vector: []float32{1, 0, 0}, TopK: 1})
	assert.True(t, snerr.IsNotFound(err))

	err = c.Upsert(ctx, index.Record{ID: "x", Vector: []float32{1, 0, 0}})
	assert.True(t, snerr.IsNotFound(err))

	_, err = c.DescribeStats(ctx)
	assert.True(t, snerr.IsNotFound(err))

	_, err = c.NextSequence(ctx)
	assert.True(t, snerr.IsNotFound(err))
}

func testEmptyQuery(t *testing.T, open Opener) {
	_, c := setup(t, open, testSpec)

	matches, err := c.Query(context.Background(), index.Query{Vector: []float32{1, 0, 0}, TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func testSelfSimilarity(t *testing.T, open Opener) {
	_, c := setup(t, open, testSpec)
	upsert(t, c, "a", []float32{1, 0, 0})
	upsert(t, c, "b", []float32{0, 1, 0})
	upsert(t, c, "c", []float32{0.9, 0.1, 0})

	matches, err := c.Query(context.Background(), index.Query{Vector: []float32{0, 1, 0}, TopK: 3})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "b", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func testTopKBound(t *testing.T, open Opener) {
	_, c := setup(t, open, testSpec)
	for i := range 5 {
		upsert(t, c, fmt.Sprintf("n%d", i), []float32{1, float32(i), 0})
	}

	matches, err := c.Query(context.Background(), index.Query{Vector: []float32{1, 0, 0}, TopK: 2})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, "n0", matches[0].ID)

	_, err = c.Query(context.Background(), index.Query{Vector: []float32{1, 0, 0}, TopK: 0})
	assert.True(t, snerr.IsInvalidInput(err))
}

func testMetadata(t *testing.T, open Opener) {
	ctx := context.Background()
	_, c := setup(t, open, testSpec)
	require.NoError(t, c.Upsert(ctx, index.Record{
		ID:       "m1",
		Vector:   []float32{1, 0, 0},
		Metadata: map[string]string{"text": "Buy milk", "created_at": "2026-01-02T03:04:05Z"},
	}))

	matches, err := c.Query(ctx, index.Query{Vector: []float32{1, 0, 0}, TopK: 1, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Buy milk", matches[0].Metadata["text"])
	assert.Equal(t, "2026-01-02T03:04:05Z", matches[0].Metadata["created_at"])

	matches, err = c.Query(ctx, index.Query{Vector: []float32{1, 0, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Nil(t, matches[0].Metadata)
}

func testUpsertReplaces(t *testing.T, open Opener) {
	ctx := context.Background()
	_, c := setup(t, open, testSpec)
	upsert(t, c, "dup", []float32{1, 0, 0})
	require.NoError(t, c.Upsert(ctx, index.Record{
		ID:       "dup",
		Vector:   []float32{0, 0, 1},
		Metadata: map[string]string{"text": "replaced"},
	}))

	stats, err := c.DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalCount)

	matches, err := c.Query(ctx, index.Query{Vector: []float32{0, 0, 1}, TopK: 1, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "dup", matches[0].ID)
	assert.Equal(t, "replaced", matches[0].Metadata["text"])
}

func testDimensionMismatch(t *testing.T, open Opener) {
	ctx := context.Background()
	_, c := setup(t, open, testSpec)

	err := c.Upsert(ctx, index.Record{ID: "short", Vector: []float32{1, 0}})
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeIndexRequestInvalid))

	_, err = c.Query(ctx, index.Query{Vector: []float32{1, 0, 0, 0}, TopK: 1})
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeIndexRequestInvalid))

	stats, err := c.DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCount)
}

func testTieBreak(t *testing.T, open Opener) {
	_, c := setup(t, open, testSpec)
	upsert(t, c, "first", []float32{0, 1, 0})
	upsert(t, c, "second", []float32{0, 1, 0})
	upsert(t, c, "third", []float32{0, 1, 0})

	matches, err := c.Query(context.Background(), index.Query{Vector: []float32{0, 1, 0}, TopK: 3})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{matches[0].ID, matches[1].ID, matches[2].ID})
	assert.Less(t, matches[0].Seq, matches[1].Seq)
	assert.Less(t, matches[1].Seq, matches[2].Seq)
}

func testEuclidean(t *testing.T, open Opener) {
	spec := index.CollectionSpec{Name: "euclid", Dimension: 2, Metric: index.MetricEuclidean}
	_, c := setup(t, open, spec)
	upsert(t, c, "origin", []float32{0, 0})
	upsert(t, c, "far", []float32{3, 4})

	matches, err := c.Query(context.Background(), index.Query{Vector: []float32{0, 0}, TopK: 2})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "origin", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.InDelta(t, 1.0/6.0, matches[1].Score, 1e-5)
}

func testSequenceSeed(t *testing.T, open Opener) {
	ctx := context.Background()
	_, c := setup(t, open, testSpec)
	upsert(t, c, "legacy-0", []float32{1, 0, 0})
	upsert(t, c, "legacy-1", []float32{0, 1, 0})

	first, err := c.NextSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), first)

	second, err := c.NextSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), second)
}

func testSequenceConcurrent(t *testing.T, open Opener) {
	const n = 32
	_, c := setup(t, open, testSpec)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]struct{}, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := c.NextSequence(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			seen[seq] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func testPersistence(t *testing.T, open Opener) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	b := open(t, path)
	_, err := b.EnsureCollection(ctx, testSpec)
	require.NoError(t, err)
	upsert(t, b.Collection(testSpec.Name), "kept", []float32{1, 0, 0})
	seq, err := b.Collection(testSpec.Name).NextSequence(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b = open(t, path)
	created, err := b.EnsureCollection(ctx, testSpec)
	require.NoError(t, err)
	assert.False(t, created)

	c := b.Collection(testSpec.Name)
	stats, err := c.DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalCount)

	next, err := c.NextSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, seq+1, next)
}
