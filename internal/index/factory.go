// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package index

import (
	"sort"
	"sync"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// DefaultBackend is used when StorageConfig.Backend is empty.
const DefaultBackend = "sqlite"

// StorageConfig selects and locates a backend.
type StorageConfig struct {
	Backend string
	Path    string
}

// Factory opens a backend rooted at path.
type Factory func(path string) (Backend, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named backend. Backend packages
// call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend named by cfg.
func Open(cfg StorageConfig) (Backend, error) {
	name := cfg.Backend
	if name == "" {
		name = DefaultBackend
	}

	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, snerr.New(snerr.CodeIndexBackendUnsupported, "unsupported storage backend",
			snerr.FieldBackend(name))
	}

	if cfg.Path == "" {
		return nil, snerr.New(snerr.CodeIndexOpenFailure, "storage path is required",
			snerr.FieldBackend(name))
	}

	b, err := f(cfg.Path)
	if err != nil {
		return nil, snerr.With(err, snerr.FieldBackend(name))
	}
	return b, nil
}
