// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package embedding_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlesyaDud/smart-notes/internal/embedding"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// countingEmbedder returns [len(text), 1] and counts calls.
type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dimension() int { return 2 }
func (c *countingEmbedder) Model() string  { return "counting" }

func TestCheckVector(t *testing.T) {
	assert.NoError(t, embedding.CheckVector([]float32{1, 2}, 2, "m"))

	err := embedding.CheckVector([]float32{1}, 2, "m")
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeEmbeddingResponseInvalid))
	assert.Equal(t, "m", snerr.FieldsOf(err)["model"])
}

func TestWrapUpstream(t *testing.T) {
	assert.NoError(t, embedding.WrapUpstream(context.Background(), nil, "p", "m"))

	err := embedding.WrapUpstream(context.Background(), errors.New("503"), "p", "m")
	assert.True(t, snerr.HasCode(err, snerr.CodeEmbeddingUpstreamFailure))
	assert.True(t, snerr.IsUpstreamFailure(err))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	err = embedding.WrapUpstream(ctx, errors.New("request aborted"), "p", "m")
	assert.True(t, snerr.IsTimeout(err))
}

func TestCached_HitsAvoidUpstream(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := embedding.NewCached(inner, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Dimension())
	assert.Equal(t, "counting", c.Model())

	ctx := context.Background()
	first, err := c.Embed(ctx, "milk")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "milk")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCached_ReturnsCopies(t *testing.T) {
	c, err := embedding.NewCached(&countingEmbedder{}, 8)
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	vec[0] = 99

	again, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, float32(3), again[0])
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: snerr.New(snerr.CodeEmbeddingUpstreamFailure, "down")}
	c, err := embedding.NewCached(inner, 8)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Zero(t, c.Len())
}

func TestCached_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := embedding.NewCached(inner, 1)
	require.NoError(t, err)

	ctx := context.Background()
	for _, text := range []string{"a", "b", "a"} {
		_, err := c.Embed(ctx, text)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestNewCached_InvalidSize(t *testing.T) {
	_, err := embedding.NewCached(&countingEmbedder{}, 0)
	require.Error(t, err)
	assert.True(t, snerr.IsInvalidInput(err))
}

func TestRateLimited_PassesThrough(t *testing.T) {
	inner := &countingEmbedder{}
	r := embedding.NewRateLimited(inner, 1000, 5)
	assert.Equal(t, 2, r.Dimension())

	for range 5 {
		_, err := r.Embed(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(5), inner.calls.Load())
}

func TestRateLimited_ExceedsDeadline(t *testing.T) {
	inner := &countingEmbedder{}
	r := embedding.NewRateLimited(inner, 0.001, 1)

	_, err := r.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Embed(ctx, "second")
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeEmbeddingRateExceeded) || snerr.IsTimeout(err))
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestHealthTracker_StartsHealthy(t *testing.T) {
	h, err := embedding.NewHealthTracker(30 * time.Second)
	require.NoError(t, err)
	assert.True(t, h.IsHealthy())
	assert.True(t, h.Metrics().Available)
}

func TestHealthTracker_InvalidCooldown(t *testing.T) {
	_, err := embedding.NewHealthTracker(0)
	require.Error(t, err)
	assert.True(t, snerr.IsInvalidInput(err))
}

func TestHealthTracker_CooldownBoundary(t *testing.T) {
	cooldown := 10 * time.Second
	now := time.Now()

	tests := []struct {
		name        string
		elapsed     time.Duration
		wantHealthy bool
	}{
		{name: "before cooldown", elapsed: 9 * time.Second, wantHealthy: false},
		{name: "at exact cooldown boundary", elapsed: 10 * time.Second, wantHealthy: true},
		{name: "after cooldown", elapsed: 11 * time.Second, wantHealthy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := embedding.NewHealthTracker(cooldown)
			require.NoError(t, err)
			h.SetNowFunc(func() time.Time { return now })

			h.RecordFailure()
			assert.False(t, h.IsHealthy())

			h.SetNowFunc(func() time.Time { return now.Add(tt.elapsed) })
			assert.Equal(t, tt.wantHealthy, h.IsHealthy())
		})
	}
}

func TestHealthTracker_Metrics(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h, err := embedding.NewHealthTracker(time.Minute)
	require.NoError(t, err)
	h.SetNowFunc(func() time.Time { return now })

	h.RecordFailure()
	h.RecordFailure()
	m := h.Metrics()
	assert.Equal(t, int64(2), m.FailureCount)
	assert.False(t, m.Available)
	require.NotNil(t, m.LastFailureAt)
	assert.Equal(t, now, *m.LastFailureAt)
	require.NotNil(t, m.CooldownUntil)
	assert.Equal(t, now.Add(time.Minute), *m.CooldownUntil)

	h.RecordSuccess()
	m = h.Metrics()
	assert.True(t, m.Available)
	assert.False(t, m.Degraded())
	assert.Nil(t, m.CooldownUntil)
	assert.Equal(t, int64(2), m.FailureCount)
	assert.Equal(t, int64(1), m.SuccessCount)
	require.NotNil(t, m.LastSuccessAt)
	assert.Equal(t, now, *m.LastSuccessAt)
}

func TestMonitored_RecordsOutcomes(t *testing.T) {
	h, err := embedding.NewHealthTracker(time.Hour)
	require.NoError(t, err)
	inner := &countingEmbedder{}
	m := embedding.NewMonitored(inner, h)
	assert.Equal(t, "counting", m.Model())

	_, err = m.Embed(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, m.Health().Available)
	assert.Equal(t, "counting", m.Health().Model)

	inner.err = snerr.New(snerr.CodeEmbeddingRequestInvalid, "empty")
	_, err = m.Embed(context.Background(), "")
	require.Error(t, err)
	assert.True(t, m.Health().Available, "caller errors do not mark the upstream unhealthy")

	inner.err = snerr.New(snerr.CodeEmbeddingUpstreamFailure, "502")
	_, err = m.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, m.Health().Available)
	assert.Equal(t, int64(1), m.Health().FailureCount)

	inner.err = snerr.New(snerr.CodeEmbeddingResponseInvalid, "short vector")
	_, err = m.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int64(2), m.Health().FailureCount)
}
