// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/OlesyaDud/smart-notes/pkg/health"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// DefaultHealthCooldown is the duration after which an unhealthy embedder
// is reported available again.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records upstream failures. An embedder is considered
// healthy until RecordFailure is called; after a failure it is marked
// unhealthy for a cooldown period.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	succeededAt  time.Time
	cooldown     time.Duration
	successCount int64
	failureCount int64
	nowFunc      func() time.Time // for testing
}

// NewHealthTracker creates a HealthTracker that starts healthy.
// Returns an error if cooldown is zero or negative.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, snerr.Errorf(snerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// isHealthyLocked: caller MUST hold at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.succeededAt = h.nowFunc()
	h.successCount++
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot of the tracker's state.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{SuccessCount: h.successCount, FailureCount: h.failureCount}
	if h.successCount > 0 {
		t := h.succeededAt
		m.LastSuccessAt = &t
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}

	m.Available = h.isHealthyLocked()
	if !h.healthy {
		cooldownEnd := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &cooldownEnd
	}
	return m
}

// Monitored records the outcome of every upstream call on a HealthTracker.
// Invalid-input failures are the caller's fault and leave health unchanged.
type Monitored struct {
	next    Embedder
	tracker *HealthTracker
}

// NewMonitored wraps next, reporting into tracker.
func NewMonitored(next Embedder, tracker *HealthTracker) *Monitored {
	return &Monitored{next: next, tracker: tracker}
}

func (m *Monitored) Dimension() int { return m.next.Dimension() }
func (m *Monitored) Model() string  { return m.next.Model() }

// Health returns the tracker snapshot labelled with the model name.
func (m *Monitored) Health() health.Metrics {
	h := m.tracker.Metrics()
	h.Model = m.next.Model()
	return h
}

func (m *Monitored) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.next.Embed(ctx, text)
	switch {
	case err == nil:
		m.tracker.RecordSuccess()
	case snerr.IsInvalidInput(err):
	default:
		m.tracker.RecordFailure()
	}
	return vec, err
}
