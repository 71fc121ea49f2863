// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package ingest turns artwork records into text and image vectors and
// writes them to their collections. Every (record, modality) pair is an
// independent unit of work: a failure is classified, logged and counted,
// and the run moves on.
package ingest

import (
	"context"
	"iter"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/embed"
	"github.com/artlens/artlens/internal/fetch"
	"github.com/artlens/artlens/internal/ingest/ledger"
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// DefaultProgressEvery is the configured progress log cadence in records.
const DefaultProgressEvery = 100

// NormalizeFunc maps a record to its modality-ready form.
type NormalizeFunc func(*artwork.Record) artwork.Normalized

// Hooks observe a run. All fields are optional.
type Hooks struct {
	OnUnit func(id string, modality types.Modality, outcome Outcome, err error)
}

// Config holds the dependencies of a Pipeline.
type Config struct {
	Store store.Store
	// TextCollection and ImageCollection default to the standard names.
	TextCollection  string
	ImageCollection string

	TextModel  *embed.Model
	ImageModel *embed.Model
	Images     fetch.Source

	// Normalize defaults to artwork.Normalizer{}.Normalize.
	Normalize NormalizeFunc
	// Modalities selects what to ingest. Empty means both.
	Modalities []types.Modality

	// ProgressEvery logs counters every N records. Zero disables
	// progress lines.
	ProgressEvery int

	// Ledger, when set, is marked for every saved unit. With Resume it is
	// also consulted so saved units are not embedded again.
	Ledger *ledger.Ledger
	Resume bool

	Hooks *Hooks
}

// Pipeline ingests records into the text and image collections.
type Pipeline struct {
	store         store.Store
	names         map[types.Modality]string
	collections   map[types.Modality]store.Collection
	textModel     *embed.Model
	imageModel    *embed.Model
	images        fetch.Source
	normalize     NormalizeFunc
	enabled       map[types.Modality]bool
	progressEvery int
	ledger        *ledger.Ledger
	resume        bool
	hooks         *Hooks
}

// New validates cfg and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, artlenserr.New(artlenserr.CodeCLISetupFailure, "ingest: store is required")
	}

	modalities := cfg.Modalities
	if len(modalities) == 0 {
		modalities = []types.Modality{types.ModalityText, types.ModalityImage}
	}
	enabled := make(map[types.Modality]bool, len(modalities))
	for _, m := range modalities {
		if !m.Valid() {
			return nil, artlenserr.New(artlenserr.CodeCLIInputInvalid, "ingest: unknown modality",
				artlenserr.FieldModality(string(m)))
		}
		enabled[m] = true
	}

	if enabled[types.ModalityText] && cfg.TextModel == nil {
		return nil, artlenserr.New(artlenserr.CodeCLISetupFailure, "ingest: text model is required")
	}
	if enabled[types.ModalityImage] {
		if cfg.ImageModel == nil || !cfg.ImageModel.SupportsImages() {
			return nil, artlenserr.New(artlenserr.CodeCLISetupFailure, "ingest: image model is required")
		}
		if cfg.Images == nil {
			return nil, artlenserr.New(artlenserr.CodeCLISetupFailure, "ingest: image source is required")
		}
	}
	if cfg.Resume && cfg.Ledger == nil {
		return nil, artlenserr.New(artlenserr.CodeCLISetupFailure, "ingest: resume requires a ledger")
	}

	textName := cfg.TextCollection
	if textName == "" {
		textName = store.TextCollection
	}
	imageName := cfg.ImageCollection
	if imageName == "" {
		imageName = store.ImageCollection
	}

	normalize := cfg.Normalize
	if normalize == nil {
		normalize = artwork.Normalizer{}.Normalize
	}

	return &Pipeline{
		store: cfg.Store,
		names: map[types.Modality]string{
			types.ModalityText:  textName,
			types.ModalityImage: imageName,
		},
		collections:   make(map[types.Modality]store.Collection, 2),
		textModel:     cfg.TextModel,
		imageModel:    cfg.ImageModel,
		images:        cfg.Images,
		normalize:     normalize,
		enabled:       enabled,
		progressEvery: cfg.ProgressEvery,
		ledger:        cfg.Ledger,
		resume:        cfg.Resume,
		hooks:         cfg.Hooks,
	}, nil
}

// Ingest runs the pipeline over an in-memory slice of records.
func (p *Pipeline) Ingest(ctx context.Context, records []*artwork.Record) (Stats, error) {
	return p.Run(ctx, func(yield func(*artwork.Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	})
}

// Run consumes records exactly once. Source errors and per-unit failures
// are counted in the returned Stats; the only error Run returns is the
// context's, in which case Stats holds the counts up to that point.
func (p *Pipeline) Run(ctx context.Context, records iter.Seq2[*artwork.Record, error]) (Stats, error) {
	stats := Stats{RunID: uuid.NewString()}
	logger := slog.With("run_id", stats.RunID)
	logger.Info("ingestion started",
		"modalities", p.modalityNames(),
		"text_collection", p.names[types.ModalityText],
		"image_collection", p.names[types.ModalityImage],
		"resume", p.resume)

	for rec, err := range records {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn("ingestion cancelled", "processed", stats.Processed, "error", ctxErr)
			return stats, ctxErr
		}
		if err != nil {
			if artlenserr.HasCode(err, artlenserr.CodeIngestRecordParseFailure) {
				stats.ParseFailures++
			} else {
				stats.SourceFailures++
			}
			fields := artlenserr.FieldsOf(err)
			logger.Warn("skipping unreadable input", "path", fields["path"], "line", fields["line"], "error", err)
			continue
		}

		stats.Processed++
		p.ingestRecord(ctx, logger, rec, &stats)

		if p.progressEvery > 0 && stats.Processed%p.progressEvery == 0 {
			logger.Info("ingestion progress",
				"processed", stats.Processed,
				"saved_text", stats.SavedText(),
				"saved_image", stats.SavedImage())
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	logger.Info("ingestion finished",
		"processed", stats.Processed,
		"saved_text", stats.SavedText(),
		"saved_image", stats.SavedImage(),
		"text_failures", stats.Text.Failures(),
		"image_failures", stats.Image.Failures(),
		"parse_failures", stats.ParseFailures,
		"missing_ids", stats.MissingIDs)
	return stats, nil
}

func (p *Pipeline) ingestRecord(ctx context.Context, logger *slog.Logger, rec *artwork.Record, stats *Stats) {
	if rec == nil || !rec.ID.Valid() {
		stats.MissingIDs++
		err := artlenserr.New(artlenserr.CodeIngestRecordMissingID, "record has no usable id")
		logger.Warn("skipping record", "outcome", OutcomeMissingID.String(), "error", err)
		p.observe("", "", OutcomeMissingID, err)
		return
	}

	n := p.normalize(rec)
	id := rec.ID.String()

	for _, m := range []types.Modality{types.ModalityText, types.ModalityImage} {
		if !p.enabled[m] {
			continue
		}
		outcome, err := p.ingestUnit(ctx, rec, n, m)
		stats.record(m, outcome)
		p.observe(id, m, outcome, err)

		switch {
		case outcome.Failed():
			logger.Warn("unit failed",
				"artwork_id", id, "modality", string(m), "outcome", outcome.String(), "error", err)
		case outcome == OutcomeSaved:
			p.mark(logger, id, m, stats.RunID)
		}
	}
}

func (p *Pipeline) ingestUnit(ctx context.Context, rec *artwork.Record, n artwork.Normalized, m types.Modality) (Outcome, error) {
	id := rec.ID.String()

	if m == types.ModalityImage && !n.ImageEligible {
		return OutcomeSkippedIneligible, nil
	}
	if p.resume {
		done, err := p.ledger.Done(m, id)
		if err != nil {
			slog.Warn("ledger lookup failed", "artwork_id", id, "modality", string(m), "error", err)
		} else if done {
			return OutcomeSkippedDone, nil
		}
	}

	var (
		vec      embed.Vector
		document string
	)
	switch m {
	case types.ModalityText:
		var err error
		vec, err = p.textModel.EmbedText(ctx, n.Text, embed.PurposeDocument)
		if err != nil {
			return OutcomeEmbedFailed, err
		}
		document = n.Text
	case types.ModalityImage:
		img, err := p.images.Fetch(ctx, n.ImageRef)
		if err != nil {
			return OutcomeFetchFailed, err
		}
		vec, err = p.imageModel.EmbedImage(ctx, img)
		if err != nil {
			return OutcomeEmbedFailed, err
		}
	}
	if len(vec) == 0 {
		return OutcomeSkippedEmpty, nil
	}

	coll, err := p.collection(ctx, m, len(vec))
	if err != nil {
		return OutcomeStoreFailed, err
	}
	err = coll.Upsert(ctx, store.Entry{
		ID:       id,
		Vector:   vec,
		Metadata: artwork.Metadata(rec, m),
		Document: document,
	})
	if err != nil {
		return OutcomeStoreFailed, err
	}
	return OutcomeSaved, nil
}

// collection opens the modality's collection on first use, creating it
// with the dimension of the first vector.
func (p *Pipeline) collection(ctx context.Context, m types.Modality, dims int) (store.Collection, error) {
	if c, ok := p.collections[m]; ok {
		return c, nil
	}
	c, err := p.store.Collection(ctx, p.names[m], store.CollectionOptions{Dimensions: dims})
	if err != nil {
		return nil, err
	}
	p.collections[m] = c
	return c, nil
}

func (p *Pipeline) mark(logger *slog.Logger, id string, m types.Modality, runID string) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Mark(m, id, runID); err != nil {
		logger.Warn("ledger mark failed", "artwork_id", id, "modality", string(m), "error", err)
	}
}

func (p *Pipeline) observe(id string, m types.Modality, o Outcome, err error) {
	if p.hooks != nil && p.hooks.OnUnit != nil {
		p.hooks.OnUnit(id, m, o, err)
	}
}

func (p *Pipeline) modalityNames() []string {
	var out []string
	for m := range p.enabled {
		out = append(out, string(m))
	}
	slices.Sort(out)
	return out
}
