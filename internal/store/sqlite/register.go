// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package sqlite

import (
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newStore)
}

func newStore(cfg *store.StorageConfig) (store.Store, error) {
	if cfg.Path == "" {
		return nil, artlenserr.New(artlenserr.CodeStoreInvalidInput, "sqlite backend requires storage.path")
	}
	return NewStore(cfg.Path, cfg.Distance)
}
