// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package store

import (
	"slices"
	"sync"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// Factory opens a Store for a backend.
type Factory func(cfg *StorageConfig) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a named storage backend. Backend packages call
// this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends lists registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the store selected by cfg.
func Open(cfg *StorageConfig) (Store, error) {
	if cfg == nil {
		cfg = &StorageConfig{}
	}
	c := *cfg
	if c.Distance == "" {
		c.Distance = DistanceCosine
	}
	if !c.Distance.Valid() {
		return nil, artlenserr.New(artlenserr.CodeStoreInvalidInput, "unsupported distance metric",
			artlenserr.Field("distance", string(c.Distance)))
	}

	backend := resolveBackend(&c)
	factoriesMu.RLock()
	f, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, artlenserr.New(artlenserr.CodeStoreBackendUnsupported, "unsupported storage backend",
			artlenserr.Field("backend", backend))
	}
	return f(&c)
}
