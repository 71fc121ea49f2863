// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package google

import "github.com/artlens/artlens/internal/embed"

// TaskType exposes taskType for white-box testing.
var TaskType = func(p embed.Purpose) string { return taskType(p) }
