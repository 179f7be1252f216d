// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

// Package health holds the serialisable health snapshot shared by the
// embedding decorators and the HTTP /health route.
package health

import "time"

// Metrics is a point-in-time view of an upstream dependency, such as the
// embedding provider behind a model name.
type Metrics struct {
	Model         string     `json:"model,omitempty"`
	Available     bool       `json:"available"`
	SuccessCount  int64      `json:"success_count"`
	FailureCount  int64      `json:"failure_count"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

// Degraded reports whether the dependency is inside a failure cooldown.
func (m Metrics) Degraded() bool { return !m.Available }
