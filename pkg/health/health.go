// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package health

import "time"

// Metrics is a serializable snapshot of an embedding provider's health,
// reported by `artlens doctor` and the server's health endpoint.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}
