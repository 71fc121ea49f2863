// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package query maps a free-text query and a search mode to one embedding
// and one nearest-neighbour lookup.
package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/embed"
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// DefaultResults is the result count used when a caller passes zero.
const DefaultResults = 6

// MaxResults bounds k for a single query.
const MaxResults = 200

// Config holds the dependencies of an Engine.
type Config struct {
	Store           store.Store
	TextCollection  string
	ImageCollection string

	TextModel *embed.Model
	// ImageModel is optional; without it hybrid queries are rejected.
	ImageModel *embed.Model
}

// Engine answers queries against the text and image collections. Models
// and collection handles are held for the engine's lifetime.
type Engine struct {
	store      store.Store
	textName   string
	imageName  string
	textModel  *embed.Model
	imageModel *embed.Model

	mu          sync.Mutex
	collections map[string]store.Collection
}

// New returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, artlenserr.New(artlenserr.CodeCLISetupFailure, "query: store is required")
	}
	if cfg.TextModel == nil {
		return nil, artlenserr.New(artlenserr.CodeCLISetupFailure, "query: text model is required")
	}

	textName := cfg.TextCollection
	if textName == "" {
		textName = store.TextCollection
	}
	imageName := cfg.ImageCollection
	if imageName == "" {
		imageName = store.ImageCollection
	}

	return &Engine{
		store:       cfg.Store,
		textName:    textName,
		imageName:   imageName,
		textModel:   cfg.TextModel,
		imageModel:  cfg.ImageModel,
		collections: map[string]store.Collection{},
	}, nil
}

// Modes lists the modes this engine can serve.
func (e *Engine) Modes() []types.SearchMode {
	modes := []types.SearchMode{types.SearchModeText, types.SearchModeVision}
	if e.imageModel != nil {
		modes = append(modes, types.SearchModeHybrid)
	}
	return modes
}

// Query embeds text for mode and returns at most k nearest entries of the
// mode's collection, closest first. A collection that has never been
// written yields no results.
func (e *Engine) Query(ctx context.Context, text string, mode types.SearchMode, k int) ([]store.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, artlenserr.New(artlenserr.CodeQueryInvalidInput, "query text is required")
	}
	if k <= 0 || k > MaxResults {
		return nil, artlenserr.New(artlenserr.CodeQueryInvalidInput, "result count out of range",
			artlenserr.Field("k", k), artlenserr.Field("max", MaxResults))
	}

	model, collection, err := e.route(mode)
	if err != nil {
		return nil, err
	}

	vec, err := model.EmbedText(ctx, text, embed.PurposeQuery)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeQueryEmbedFailure, "embedding query",
			artlenserr.Field("mode", string(mode)))
	}

	coll, err := e.collection(ctx, collection)
	if artlenserr.IsNotFound(err) {
		slog.Debug("collection not found, returning no results", "collection", collection)
		return []store.Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	results, err := coll.Query(ctx, vec, k)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeQuerySearchFailure, "searching collection",
			artlenserr.FieldCollection(collection))
	}
	return results, nil
}

// GetResults is the flat entry point used by display clients. A blank
// query returns an empty list without touching the index; n of zero uses
// DefaultResults.
func (e *Engine) GetResults(ctx context.Context, text string, mode types.SearchMode, n int) ([]types.ArtworkHit, error) {
	if strings.TrimSpace(text) == "" {
		return []types.ArtworkHit{}, nil
	}
	if n == 0 {
		n = DefaultResults
	}

	results, err := e.Query(ctx, text, mode, n)
	if err != nil {
		return nil, err
	}

	hits := make([]types.ArtworkHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, artwork.Hit(r.ID, r.Rank, r.Metadata))
	}
	return hits, nil
}

// route selects the embedding model and collection for a mode.
func (e *Engine) route(mode types.SearchMode) (*embed.Model, string, error) {
	switch mode {
	case types.SearchModeText:
		return e.textModel, e.textName, nil
	case types.SearchModeVision:
		// Vision needs a reference image, which free-text queries do not
		// carry; it answers like text mode.
		slog.Debug("vision mode has no image input, using text mode")
		return e.textModel, e.textName, nil
	case types.SearchModeHybrid:
		if e.imageModel == nil {
			return nil, "", artlenserr.New(artlenserr.CodeQueryModeUnsupported,
				"hybrid mode requires an image embedding model")
		}
		// The image model's text tower shares the image vectors' space.
		return e.imageModel, e.imageName, nil
	default:
		return nil, "", artlenserr.New(artlenserr.CodeQueryModeUnsupported, "unsupported search mode",
			artlenserr.Field("mode", string(mode)))
	}
}

func (e *Engine) collection(ctx context.Context, name string) (store.Collection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.collections[name]; ok {
		return c, nil
	}
	c, err := e.store.Collection(ctx, name, store.CollectionOptions{})
	if err != nil {
		return nil, err
	}
	e.collections[name] = c
	return c, nil
}

// Collection opens a collection by modality for inspection.
func (e *Engine) Collection(ctx context.Context, m types.Modality) (store.Collection, error) {
	switch m {
	case types.ModalityText:
		return e.collection(ctx, e.textName)
	case types.ModalityImage:
		return e.collection(ctx, e.imageName)
	default:
		return nil, artlenserr.New(artlenserr.CodeQueryInvalidInput, "unknown modality",
			artlenserr.FieldModality(string(m)))
	}
}
