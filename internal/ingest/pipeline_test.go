// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package ingest_test

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/ingest"
	"github.com/artlens/artlens/internal/ingest/ledger"
	"github.com/artlens/artlens/internal/store"
	"github.com/artlens/artlens/internal/store/memory"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, cfg ingest.Config) *ingest.Pipeline {
	t.Helper()
	if cfg.TextModel == nil && cfg.ImageModel == nil {
		cfg.TextModel, cfg.ImageModel = newModels(t)
	}
	if cfg.Images == nil {
		cfg.Images = &fakeImages{}
	}
	p, err := ingest.New(cfg)
	require.NoError(t, err)
	return p
}

func TestPipeline_IdempotentUpsert(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	p := newPipeline(t, ingest.Config{Store: s})
	records := []*artwork.Record{publicRecord(1), publicRecord(2)}

	for range 2 {
		stats, err := p.Ingest(context.Background(), records)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Processed)
		assert.Equal(t, 2, stats.SavedText())
		assert.Equal(t, 2, stats.SavedImage())
	}

	assert.Equal(t, []string{"1", "2"}, ids(t, s, store.TextCollection))
	assert.Equal(t, []string{"1", "2"}, ids(t, s, store.ImageCollection))
}

func TestPipeline_FetchFailureIsIsolated(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	images := &fakeImages{failing: map[string]bool{"img-5": true}}

	var failed []string
	p := newPipeline(t, ingest.Config{
		Store:  s,
		Images: images,
		Hooks: &ingest.Hooks{OnUnit: func(id string, m types.Modality, o ingest.Outcome, err error) {
			if o.Failed() {
				failed = append(failed, id+"/"+string(m))
				assert.True(t, artlenserr.IsForbidden(err))
			}
		}},
	})

	var records []*artwork.Record
	for i := 1; i <= 10; i++ {
		records = append(records, publicRecord(i))
	}

	stats, err := p.Ingest(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.Processed)
	assert.Equal(t, 10, stats.SavedText())
	assert.Equal(t, 9, stats.SavedImage())
	assert.Equal(t, 1, stats.Image.FetchFailed)
	assert.Equal(t, []string{"5/image"}, failed)
	assert.Len(t, images.fetched, 10, "records after the failure are still processed")
	assert.NotContains(t, ids(t, s, store.ImageCollection), "5")
	assert.Contains(t, ids(t, s, store.TextCollection), "5")
}

func TestPipeline_EmptyTextOverrideIsNeverWritten(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	p := newPipeline(t, ingest.Config{
		Store:      s,
		Modalities: []types.Modality{types.ModalityText},
		Normalize: func(r *artwork.Record) artwork.Normalized {
			n := artwork.Normalizer{}.Normalize(r)
			if r.ID == "2" {
				n.Text = ""
			}
			return n
		},
	})

	stats, err := p.Ingest(context.Background(), []*artwork.Record{publicRecord(1), publicRecord(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SavedText())
	assert.Equal(t, 1, stats.Text.SkippedEmpty)
	assert.Zero(t, stats.Text.Failures())
	assert.Equal(t, []string{"1"}, ids(t, s, store.TextCollection))
}

func TestPipeline_EmptyRecordUsesFallbackText(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	p := newPipeline(t, ingest.Config{Store: s})

	stats, err := p.Ingest(context.Background(), []*artwork.Record{{ID: "42"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SavedText())
	assert.Equal(t, 1, stats.Image.SkippedIneligible)

	c, err := s.Collection(context.Background(), store.TextCollection, store.CollectionOptions{})
	require.NoError(t, err)
	got, err := c.Get(context.Background(), store.GetRequest{IDs: []string{"42"}, Include: store.IncludeAll})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Artwork 42", got[0].Document)
	assert.Equal(t, artwork.UnknownArtist, got[0].Metadata[artwork.MetaArtistTitle])
	assert.Equal(t, "text", got[0].Metadata[artwork.MetaType])
}

func TestPipeline_StoreFailureCountedSeparately(t *testing.T) {
	s := &failingStore{Store: memory.New(store.DistanceCosine), ids: map[string]bool{"3": true}}
	p := newPipeline(t, ingest.Config{Store: s})

	var records []*artwork.Record
	for i := 1; i <= 4; i++ {
		records = append(records, publicRecord(i))
	}
	stats, err := p.Ingest(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.SavedText())
	assert.Equal(t, 3, stats.SavedImage())
	assert.Equal(t, 1, stats.Text.StoreFailed)
	assert.Equal(t, 1, stats.Image.StoreFailed)
	assert.Zero(t, stats.Text.EmbedFailed)
}

func TestPipeline_MissingIDAndParseFailures(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	p := newPipeline(t, ingest.Config{Store: s})

	seq := iter.Seq2[*artwork.Record, error](func(yield func(*artwork.Record, error) bool) {
		_ = yield(publicRecord(1), nil) &&
			yield(nil, artlenserr.New(artlenserr.CodeIngestRecordParseFailure, "bad json")) &&
			yield(&artwork.Record{Title: "No id"}, nil) &&
			yield(nil, artlenserr.New(artlenserr.CodeIngestSourceReadFailure, "unreadable")) &&
			yield(publicRecord(2), nil)
	})

	stats, err := p.Run(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.MissingIDs)
	assert.Equal(t, 1, stats.ParseFailures)
	assert.Equal(t, 1, stats.SourceFailures)
	assert.Equal(t, 2, stats.SavedText())
	assert.NotEmpty(t, stats.RunID)
}

func TestPipeline_ProgressLines(t *testing.T) {
	records := make([]*artwork.Record, 0, 200)
	for i := range 200 {
		records = append(records, publicRecord(i+1))
	}

	tests := []struct {
		name  string
		every int
		want  int
	}{
		{"disabled at zero", 0, 0},
		{"every fifty", 50, 4},
		{"default cadence", ingest.DefaultProgressEvery, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			p := newPipeline(t, ingest.Config{
				Store:         memory.New(store.DistanceCosine),
				Modalities:    []types.Modality{types.ModalityText},
				ProgressEvery: tt.every,
			})

			stats, err := p.Ingest(context.Background(), records)
			require.NoError(t, err)
			assert.Equal(t, 200, stats.Processed)
			assert.Len(t, logLines(logs, "ingestion progress"), tt.want)
		})
	}
}

func TestPipeline_MalformedLineWarnedOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.jsonl"),
		[]byte("{\"id\": 1}\nnot json\n{\"id\": 2}\n"), 0o600))

	logs := captureLogs(t)
	p := newPipeline(t, ingest.Config{
		Store:      memory.New(store.DistanceCosine),
		Modalities: []types.Modality{types.ModalityText},
	})

	stats, err := p.Run(context.Background(), artwork.Records(context.Background(), dir))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.ParseFailures)

	warned := logLines(logs, "skipping unreadable input")
	require.Len(t, warned, 1)
	assert.Contains(t, warned[0], `"line":2`)
	assert.NotContains(t, logs.String(), "skipping malformed line")
}

func TestPipeline_ModalitySelection(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	images := &fakeImages{}
	p := newPipeline(t, ingest.Config{
		Store:      s,
		Images:     images,
		Modalities: []types.Modality{types.ModalityImage},
	})

	stats, err := p.Ingest(context.Background(), []*artwork.Record{publicRecord(1)})
	require.NoError(t, err)
	assert.Zero(t, stats.SavedText())
	assert.Equal(t, 1, stats.SavedImage())
	assert.Empty(t, ids(t, s, store.TextCollection))
}

func TestPipeline_StrictPolicySkipsNonPublicImages(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	images := &fakeImages{}
	rec := publicRecord(1)
	rec.IsPublicDomain = false

	p := newPipeline(t, ingest.Config{Store: s, Images: images})
	stats, err := p.Ingest(context.Background(), []*artwork.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Image.SkippedIneligible)
	assert.Empty(t, images.fetched)

	p = newPipeline(t, ingest.Config{
		Store:     s,
		Images:    images,
		Normalize: artwork.Normalizer{ImagePolicy: artwork.ImagePolicyRelaxed}.Normalize,
	})
	stats, err = p.Ingest(context.Background(), []*artwork.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SavedImage())
}

func TestPipeline_ResumeSkipsSavedUnits(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	s := memory.New(store.DistanceCosine)
	images := &fakeImages{}
	p := newPipeline(t, ingest.Config{Store: s, Images: images, Ledger: l, Resume: true})

	first, err := p.Ingest(context.Background(), []*artwork.Record{publicRecord(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, first.SavedImage())

	second, err := p.Ingest(context.Background(), []*artwork.Record{publicRecord(1), publicRecord(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Text.SkippedDone)
	assert.Equal(t, 1, second.Image.SkippedDone)
	assert.Equal(t, 1, second.SavedImage())
	assert.Equal(t, []string{"img-1", "img-2"}, images.fetched)

	m, err := l.Get(types.ModalityText, "2")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, second.RunID, m.RunID)
}

func TestPipeline_CancelledContext(t *testing.T) {
	p := newPipeline(t, ingest.Config{Store: memory.New(store.DistanceCosine)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := p.Ingest(ctx, []*artwork.Record{publicRecord(1)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Processed)
}

func TestNew_Validation(t *testing.T) {
	text, image := newModels(t)
	s := memory.New(store.DistanceCosine)

	tests := []struct {
		name string
		cfg  ingest.Config
	}{
		{"no store", ingest.Config{TextModel: text, ImageModel: image, Images: &fakeImages{}}},
		{"no text model", ingest.Config{Store: s, Modalities: []types.Modality{types.ModalityText}}},
		{"text model for images", ingest.Config{Store: s, ImageModel: text, Images: &fakeImages{},
			Modalities: []types.Modality{types.ModalityImage}}},
		{"no image source", ingest.Config{Store: s, ImageModel: image, Modalities: []types.Modality{types.ModalityImage}}},
		{"unknown modality", ingest.Config{Store: s, TextModel: text, Modalities: []types.Modality{"audio"}}},
		{"resume without ledger", ingest.Config{Store: s, TextModel: text,
			Modalities: []types.Modality{types.ModalityText}, Resume: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingest.New(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "saved", ingest.OutcomeSaved.String())
	assert.Equal(t, "fetch_failed", ingest.OutcomeFetchFailed.String())
	assert.Equal(t, "unknown", ingest.Outcome(99).String())
	assert.False(t, ingest.OutcomeSkippedEmpty.Failed())
	assert.True(t, ingest.OutcomeStoreFailed.Failed())
}
