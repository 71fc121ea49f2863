// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"log/slog"

	"github.com/artlens/artlens/internal/config"
	"github.com/artlens/artlens/internal/embed"
	_ "github.com/artlens/artlens/internal/embed/google" // register google provider
	_ "github.com/artlens/artlens/internal/embed/hash"   // register hash provider
	_ "github.com/artlens/artlens/internal/embed/openai" // register openai provider
	"github.com/artlens/artlens/internal/fetch"
	"github.com/artlens/artlens/internal/query"
	"github.com/artlens/artlens/internal/store"
	_ "github.com/artlens/artlens/internal/store/memory"   // register memory backend
	_ "github.com/artlens/artlens/internal/store/postgres" // register postgres backend
	_ "github.com/artlens/artlens/internal/store/sqlite"   // register sqlite backend
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// imageNeed says how a command depends on the image model.
type imageNeed int

const (
	imageNone imageNeed = iota
	// imageOptional builds the model when possible; hybrid queries are
	// rejected without it.
	imageOptional
	imageRequired
)

// App holds the subsystems a command runs against.
type App struct {
	Config     *config.Config
	Store      store.Store
	TextModel  *embed.Model
	ImageModel *embed.Model
}

// WireApp opens the store and builds the embedding models. Models are
// built once and reused for the whole command.
func WireApp(cfg *config.Config, need imageNeed) (*App, error) {
	text, err := embed.NewText(cfg.Embedding.Text.EmbedConfig())
	if err != nil {
		return nil, artlenserr.Wrapf(err, artlenserr.CodeCLISetupFailure, "building text model %q", cfg.Embedding.Text.Provider)
	}

	var image *embed.Model
	if need != imageNone {
		image, err = embed.NewImage(cfg.Embedding.Image.EmbedConfig())
		switch {
		case err != nil && need == imageRequired:
			return nil, artlenserr.Wrapf(err, artlenserr.CodeCLISetupFailure, "building image model %q", cfg.Embedding.Image.Provider)
		case err != nil:
			slog.Warn("image model unavailable, hybrid search disabled",
				"provider", cfg.Embedding.Image.Provider, "error", err)
			image = nil
		}
	}

	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return nil, artlenserr.Wrapf(err, artlenserr.CodeCLISetupFailure, "opening %s store", cfg.Storage.Backend)
	}

	return &App{Config: cfg, Store: st, TextModel: text, ImageModel: image}, nil
}

// Close releases the store.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
}

// Engine builds the query engine over the app's store and models.
func (a *App) Engine() (*query.Engine, error) {
	return query.New(query.Config{
		Store:           a.Store,
		TextCollection:  a.Config.Storage.TextCollection,
		ImageCollection: a.Config.Storage.ImageCollection,
		TextModel:       a.TextModel,
		ImageModel:      a.ImageModel,
	})
}

// Images builds the IIIF fetcher, wrapped in an LRU cache when cached is
// set.
func (a *App) Images(cached bool) (fetch.Source, error) {
	f, err := fetch.New(a.Config.FetchConfig())
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeCLISetupFailure, "building image fetcher")
	}

	if !cached {
		return f, nil
	}
	c, err := fetch.NewCached(f, a.Config.Fetch.CacheSize)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeCLISetupFailure, "building image cache")
	}
	return c, nil
}
