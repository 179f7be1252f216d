// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes_test

import (
	"context"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/index"
	"github.com/OlesyaDud/smart-notes/internal/notes"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Concept axes of the lexicon embedder.
const (
	axisDairy = iota
	axisShopping
	axisFarm
	axisWork
	axisMorning
	axisTime
	axisOther
	lexiconDim
)

var lexicon = map[string][]int{
	"milk":      {axisDairy},
	"dairy":     {axisDairy},
	"cheese":    {axisDairy},
	"cows":      {axisDairy, axisFarm},
	"buy":       {axisShopping},
	"shopping":  {axisShopping},
	"groceries": {axisShopping},
	"finish":    {axisWork},
	"quarterly": {axisWork},
	"report":    {axisWork},
	"dawn":      {axisMorning},
	"tomorrow":  {axisTime},
}

// lexiconEmbedder maps words onto concept axes so semantic ranking can be
// asserted without a real model.
type lexiconEmbedder struct {
	calls atomic.Int32
	err   error
	delay time.Duration
	dim   int // overrides the returned length when non-zero
}

func (e *lexiconEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.delay):
		}
	}
	if e.err != nil {
		return nil, e.err
	}

	vec := make([]float32, lexiconDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		for _, axis := range lexicon[w] {
			vec[axis]++
		}
	}
	hit := false
	for _, x := range vec {
		if x != 0 {
			hit = true
		}
	}
	if !hit {
		vec[axisOther] = 1
	}
	if e.dim != 0 {
		return vec[:e.dim], nil
	}
	return vec, nil
}

func (e *lexiconEmbedder) Dimension() int { return lexiconDim }
func (e *lexiconEmbedder) Model() string  { return "lexicon" }

// memIndex is an in-memory index.Collection and index.Provisioner.
type memIndex struct {
	mu      sync.Mutex
	spec    *index.CollectionSpec
	records map[string]index.Match
	vectors map[string][]float32
	seq     int64
	nextID  uint64

	ensures   atomic.Int32
	upserts   atomic.Int32
	queries   atomic.Int32
	lastTopK  atomic.Int32
	upsertErr error
	queryErr  error
	statsErr  error
	statsHook func() // runs after DescribeStats reads the count
}

func newMemIndex() *memIndex {
	return &memIndex{records: map[string]index.Match{}, vectors: map[string][]float32{}}
}

func (m *memIndex) EnsureCollection(_ context.Context, spec index.CollectionSpec) (bool, error) {
	m.ensures.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spec != nil {
		if !index.SameShape(*m.spec, spec) {
			return false, snerr.New(snerr.CodeIndexCollectionConflict, "shape differs")
		}
		return false, nil
	}
	m.spec = &spec
	return true, nil
}

func (m *memIndex) Upsert(ctx context.Context, rec index.Record) error {
	m.upserts.Add(1)
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.records[rec.ID]
	seq := prev.Seq
	if !ok {
		m.seq++
		seq = m.seq
	}
	m.records[rec.ID] = index.Match{ID: rec.ID, Seq: seq, Metadata: maps.Clone(rec.Metadata)}
	m.vectors[rec.ID] = rec.Vector
	return nil
}

func (m *memIndex) Query(_ context.Context, q index.Query) ([]index.Match, error) {
	m.queries.Add(1)
	m.lastTopK.Store(int32(q.TopK))
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := make([]index.Match, 0, len(m.records))
	for id, r := range m.records {
		r.Score = index.CosineSimilarity(q.Vector, m.vectors[id])
		matches = append(matches, r)
	}
	index.SortMatches(matches)
	if len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	return matches, nil
}

func (m *memIndex) DescribeStats(context.Context) (index.Stats, error) {
	if m.statsErr != nil {
		return index.Stats{}, m.statsErr
	}
	m.mu.Lock()
	count := int64(len(m.records))
	m.mu.Unlock()
	if m.statsHook != nil {
		m.statsHook()
	}
	return index.Stats{TotalCount: count, Dimension: lexiconDim, Metric: index.MetricCosine}, nil
}

func (m *memIndex) NextSequence(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.nextID
	m.nextID++
	return n, nil
}

func (m *memIndex) setMetadata(id string, meta map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[id]
	r.Metadata = meta
	m.records[id] = r
}

func testConfig() notes.Config {
	cfg := notes.DefaultConfig()
	cfg.Collection = index.CollectionSpec{Name: "notes", Dimension: lexiconDim, Metric: index.MetricCosine}
	return cfg
}

func newTestStore(t *testing.T, cfg notes.Config, e *lexiconEmbedder, idx *memIndex) *notes.Store {
	t.Helper()
	s, err := notes.New(cfg, e, idx, idx, notes.NewSequenceAllocator(idx))
	require.NoError(t, err)
	return s
}
