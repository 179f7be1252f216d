// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/index"
	_ "github.com/OlesyaDud/smart-notes/internal/index/bolt"
	_ "github.com/OlesyaDud/smart-notes/internal/index/sqlite"
	"github.com/OlesyaDud/smart-notes/internal/notes"
)

func openStore(t *testing.T, backend, scheme string) *notes.Store {
	t.Helper()
	b, err := index.Open(index.StorageConfig{Backend: backend, Path: filepath.Join(t.TempDir(), "notes.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	cfg := testConfig()
	col := b.Collection(cfg.Collection.Name)
	ids, err := notes.NewIDAllocator(scheme, col)
	require.NoError(t, err)

	s, err := notes.New(cfg, &lexiconEmbedder{}, b, col, ids)
	require.NoError(t, err)
	require.NoError(t, s.EnsureIndex(context.Background()))
	require.NoError(t, s.EnsureIndex(context.Background()))
	return s
}

func TestDairyShoppingRanksMilkNotesFirst(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			s := openStore(t, backend, notes.IDSchemeSequence)

			ids := map[string]string{}
			for _, text := range []string{"Buy milk tomorrow", "Finish the quarterly report", "Milk the cows at dawn"} {
				id, err := s.Add(ctx, text)
				require.NoError(t, err)
				ids[text] = id
			}
			assert.Equal(t, "note-0", ids["Buy milk tomorrow"])
			assert.Equal(t, "note-2", ids["Milk the cows at dawn"])

			results, err := s.Search(ctx, "dairy shopping", 2)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "Buy milk tomorrow", results[0].Text)
			assert.Equal(t, "Milk the cows at dawn", results[1].Text)
			assert.Greater(t, results[0].Score, results[1].Score)

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), stats.TotalCount)
		})
	}
}

func TestConcurrentAddsOnDurableBackends(t *testing.T) {
	const n = 20

	for _, backend := range []string{"sqlite", "bolt"} {
		for _, scheme := range []string{notes.IDSchemeSequence, notes.IDSchemeUUID} {
			t.Run(backend+"/"+scheme, func(t *testing.T) {
				ctx := context.Background()
				s := openStore(t, backend, scheme)

				var (
					wg  sync.WaitGroup
					mu  sync.Mutex
					ids = map[string]string{}
				)
				for i := range n {
					wg.Add(1)
					go func() {
						defer wg.Done()
						text := fmt.Sprintf("buy milk batch %c", 'a'+i)
						id, err := s.Add(ctx, text)
						assert.NoError(t, err)
						mu.Lock()
						ids[id] = text
						mu.Unlock()
					}()
				}
				wg.Wait()
				require.Len(t, ids, n)

				stats, err := s.Stats(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(n), stats.TotalCount)

				results, err := s.Search(ctx, "milk", n)
				require.NoError(t, err)
				require.Len(t, results, n)
				for _, r := range results {
					assert.Equal(t, ids[r.ID], r.Text)
				}
			})
		}
	}
}
