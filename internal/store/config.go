// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package store

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend  string   // "sqlite" (default), "postgres" or "memory"
	Path     string   // sqlite database file
	DSN      string   // postgres connection string
	Distance Distance // empty means cosine
}
