// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package server

import (
	"context"

	"github.com/artlens/artlens/internal/fetch"
	"github.com/artlens/artlens/pkg/health"
	"github.com/artlens/artlens/pkg/types"
)

// Searcher answers display queries. *query.Engine satisfies it.
type Searcher interface {
	GetResults(ctx context.Context, text string, mode types.SearchMode, n int) ([]types.ArtworkHit, error)
	Modes() []types.SearchMode
}

// HealthReporter reports provider health. *embed.Model satisfies it.
type HealthReporter interface {
	Health() health.Metrics
}

// Services are the backends the routes call into.
type Services struct {
	Search Searcher
	// Images serves thumbnails; nil disables the image route.
	Images fetch.Source
	// Models are reported by /health, keyed by role ("text", "image").
	Models map[string]HealthReporter
}
