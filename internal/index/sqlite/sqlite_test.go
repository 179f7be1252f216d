// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/index"
	"github.com/OlesyaDud/smart-notes/internal/index/indextest"
	"github.com/OlesyaDud/smart-notes/internal/index/sqlite"
)

func openDB(t *testing.T, path string) index.Backend {
	t.Helper()
	db, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteConformance(t *testing.T) {
	indextest.Run(t, openDB)
}

func TestOpen_RegistersBackend(t *testing.T) {
	assert.Contains(t, index.Backends(), "sqlite")

	b, err := index.Open(index.StorageConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "nested", "notes.db")})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	created, err := b.EnsureCollection(context.Background(),
		index.CollectionSpec{Name: "smart-notes", Dimension: 4, Metric: index.MetricCosine})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	b, err := index.Open(index.StorageConfig{Path: filepath.Join(t.TempDir(), "notes.db")})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	_, ok := b.(*sqlite.DB)
	assert.True(t, ok)
}

func TestCollectionNamesWithHyphensDoNotCollide(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, filepath.Join(t.TempDir(), "notes.db"))

	for _, name := range []string{"smart-notes", "smartnotes"} {
		_, err := db.EnsureCollection(ctx, index.CollectionSpec{Name: name, Dimension: 2, Metric: index.MetricCosine})
		require.NoError(t, err)
	}

	require.NoError(t, db.Collection("smart-notes").Upsert(ctx, index.Record{ID: "a", Vector: []float32{1, 0}}))

	stats, err := db.Collection("smartnotes").DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCount)
}

func TestUpsert_CancelledContextWritesNothing(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "notes.db"))
	_, err := db.EnsureCollection(context.Background(),
		index.CollectionSpec{Name: "notes", Dimension: 2, Metric: index.MetricCosine})
	require.NoError(t, err)
	c := db.Collection("notes")

	// Warm the registry cache so the failure comes from the write itself.
	_, err = c.DescribeStats(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Upsert(ctx, index.Record{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"text": "x"}})
	require.Error(t, err)

	stats, err := c.DescribeStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCount)
}
