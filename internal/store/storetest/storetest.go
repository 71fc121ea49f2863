// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package storetest is a conformance suite every store backend runs.
package storetest

import (
	"context"
	"testing"

	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) store.Store

// Run exercises the store.Store contract against a backend.
func Run(t *testing.T, open Opener) {
	t.Helper()

	t.Run("CreateAndReopen", func(t *testing.T) { testCreateAndReopen(t, open(t)) })
	t.Run("UpsertIsIdempotent", func(t *testing.T) { testUpsertIdempotent(t, open(t)) })
	t.Run("QueryOrdersByDistance", func(t *testing.T) { testQueryOrder(t, open(t)) })
	t.Run("QueryLargerThanCollection", func(t *testing.T) { testQueryLargeK(t, open(t)) })
	t.Run("Get", func(t *testing.T) { testGet(t, open(t)) })
	t.Run("DimensionChecks", func(t *testing.T) { testDimensions(t, open(t)) })
	t.Run("CollectionsAreIndependent", func(t *testing.T) { testIndependent(t, open(t)) })
	t.Run("InvalidName", func(t *testing.T) { testInvalidName(t, open(t)) })
}

func meta(title string) map[string]any {
	return map[string]any{"title": title, "artist_title": "Unknown artist", "image_id": ""}
}

func mustCollection(t *testing.T, s store.Store, name string, dims int) store.Collection {
	t.Helper()
	c, err := s.Collection(context.Background(), name, store.CollectionOptions{Dimensions: dims})
	require.NoError(t, err)
	return c
}

func testCreateAndReopen(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Collection(ctx, store.TextCollection, store.CollectionOptions{})
	require.Error(t, err)
	assert.True(t, artlenserr.IsNotFound(err), "opening a missing collection without dimensions is not found")

	c := mustCollection(t, s, store.TextCollection, 3)
	assert.Equal(t, store.TextCollection, c.Info().Name)
	assert.Equal(t, 3, c.Info().Dimensions)
	assert.True(t, c.Info().Distance.Valid())

	again, err := s.Collection(ctx, store.TextCollection, store.CollectionOptions{})
	require.NoError(t, err)
	assert.Equal(t, c.Info(), again.Info())

	infos, err := s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, store.TextCollection, infos[0].Name)
}

func testUpsertIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := mustCollection(t, s, store.TextCollection, 3)

	require.NoError(t, c.Upsert(ctx, store.Entry{ID: "1", Vector: []float32{1, 0, 0}, Metadata: meta("first"), Document: "v1"}))
	require.NoError(t, c.Upsert(ctx, store.Entry{ID: "1", Vector: []float32{0, 1, 0}, Metadata: meta("second"), Document: "v2"}))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := c.Get(ctx, store.GetRequest{IDs: []string{"1"}, Include: store.IncludeAll})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Metadata["title"])
	assert.Equal(t, "v2", got[0].Document)
	assert.InDeltaSlice(t, []float32{0, 1, 0}, got[0].Vector, 1e-6)

	res, err := c.Query(ctx, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1, "the replaced vector must not linger")
	assert.InDelta(t, 0, res[0].Distance, 1e-5)
}

func testQueryOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := mustCollection(t, s, store.ImageCollection, 3)

	require.NoError(t, c.Upsert(ctx, store.Entry{ID: "a", Vector: []float32{1, 0, 0}, Metadata: meta("A")}))
	require.NoError(t, c.Upsert(ctx, store.Entry{ID: "b", Vector: []float32{0, 1, 0}, Metadata: meta("B")}))
	require.NoError(t, c.Upsert(ctx, store.Entry{ID: "c", Vector: []float32{0.8, 0.6, 0}, Metadata: meta("C")}))

	res, err := c.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "a", res[0].ID)
	assert.Equal(t, 1, res[0].Rank)
	assert.Equal(t, "c", res[1].ID)
	assert.Equal(t, 2, res[1].Rank)
	assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
	assert.Equal(t, "C", res[1].Metadata["title"])
}

func testQueryLargeK(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := mustCollection(t, s, store.TextCollection, 2)

	require.NoError(t, c.Upsert(ctx, store.Entry{ID: "x", Vector: []float32{1, 0}}))
	require.NoError(t, c.Upsert(ctx, store.Entry{ID: "y", Vector: []float32{0, 1}}))

	res, err := c.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = c.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func testGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := mustCollection(t, s, store.TextCollection, 2)

	for _, id := range []string{"3", "1", "2"} {
		require.NoError(t, c.Upsert(ctx, store.Entry{ID: id, Vector: []float32{1, 1}, Metadata: meta("t" + id), Document: "doc " + id}))
	}

	page, err := c.Get(ctx, store.GetRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "3", page[0].ID, "pages follow insertion order")
	assert.Equal(t, "1", page[1].ID)
	assert.Nil(t, page[0].Metadata)
	assert.Empty(t, page[0].Document)
	assert.Nil(t, page[0].Vector)

	rest, err := c.Get(ctx, store.GetRequest{Offset: 2, Include: store.IncludeDocuments})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "doc 2", rest[0].Document)

	byID, err := c.Get(ctx, store.GetRequest{IDs: []string{"2", "missing", "3"}, Include: store.IncludeMetadata})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, "2", byID[0].ID)
	assert.Equal(t, "t2", byID[0].Metadata["title"])
	assert.Equal(t, "3", byID[1].ID)
}

func testDimensions(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := mustCollection(t, s, store.TextCollection, 3)

	err := c.Upsert(ctx, store.Entry{ID: "1", Vector: []float32{1, 0}})
	require.Error(t, err)
	assert.Equal(t, artlenserr.CodeStoreDimensionInvalid, artlenserr.CodeOf(err))

	err = c.Upsert(ctx, store.Entry{Vector: []float32{1, 0, 0}})
	require.Error(t, err)

	_, err = c.Query(ctx, []float32{1}, 1)
	require.Error(t, err)

	_, err = s.Collection(ctx, store.TextCollection, store.CollectionOptions{Dimensions: 4})
	require.Error(t, err)
	assert.True(t, artlenserr.IsInvalidInput(err))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed upserts leave nothing behind")
}

func testIndependent(t *testing.T, s store.Store) {
	ctx := context.Background()
	text := mustCollection(t, s, store.TextCollection, 2)
	image := mustCollection(t, s, store.ImageCollection, 2)

	require.NoError(t, text.Upsert(ctx, store.Entry{ID: "1", Vector: []float32{1, 0}}))
	require.NoError(t, text.Upsert(ctx, store.Entry{ID: "2", Vector: []float32{0, 1}}))
	require.NoError(t, image.Upsert(ctx, store.Entry{ID: "2", Vector: []float32{1, 0}}))

	tn, err := text.Count(ctx)
	require.NoError(t, err)
	in, err := image.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tn)
	assert.Equal(t, 1, in)

	res, err := image.Query(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "2", res[0].ID)

	infos, err := s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, store.ImageCollection, infos[0].Name)
	assert.Equal(t, store.TextCollection, infos[1].Name)
}

func testInvalidName(t *testing.T, s store.Store) {
	_, err := s.Collection(context.Background(), "drop table; --", store.CollectionOptions{Dimensions: 2})
	require.Error(t, err)
	assert.True(t, artlenserr.IsInvalidInput(err))
}
