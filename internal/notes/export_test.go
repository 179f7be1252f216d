// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes

import "time"

// SetNow overrides the store clock for white-box testing.
func SetNow(s *Store, fn func() time.Time) {
	s.now = fn
}
