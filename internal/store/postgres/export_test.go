// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package postgres

import "github.com/artlens/artlens/internal/store"

// Operator and OpsClass expose the metric mapping for white-box testing.
var (
	Operator = func(d store.Distance) string { return operator(d) }
	OpsClass = func(d store.Distance) string { return opsClass(d) }
)
