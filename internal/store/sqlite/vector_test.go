// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/artlens/artlens/internal/store"
	"github.com/artlens/artlens/internal/store/sqlite"
	"github.com/artlens/artlens/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(distance store.Distance) storetest.Opener {
	return func(t *testing.T) store.Store {
		s, err := sqlite.NewStore(testDBPath(t, "index"), distance)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
}

func TestConformance_Cosine(t *testing.T) {
	storetest.Run(t, open(store.DistanceCosine))
}

func TestConformance_L2(t *testing.T) {
	storetest.Run(t, open(store.DistanceL2))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "persist")

	s, err := sqlite.NewStore(path, store.DistanceCosine)
	require.NoError(t, err)
	c, err := s.Collection(ctx, store.TextCollection, store.CollectionOptions{Dimensions: 3})
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, store.Entry{
		ID:       "27992",
		Vector:   []float32{0.6, 0.8, 0},
		Metadata: map[string]any{"title": "A Sunday on La Grande Jatte"},
		Document: "A Sunday on La Grande Jatte\nby Georges Seurat",
	}))
	require.NoError(t, s.Close())

	// The stored metric wins over the one passed on reopen.
	s, err = sqlite.NewStore(path, store.DistanceL2)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	c, err = s.Collection(ctx, store.TextCollection, store.CollectionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Info().Dimensions)
	assert.Equal(t, store.DistanceCosine, c.Info().Distance)

	got, err := c.Get(ctx, store.GetRequest{IDs: []string{"27992"}, Include: store.IncludeAll})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0.6, 0.8, 0}, got[0].Vector)
	assert.Equal(t, "A Sunday on La Grande Jatte", got[0].Metadata["title"])
	assert.Contains(t, got[0].Document, "Seurat")
}

func TestStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "index.db")
	s, err := sqlite.NewStore(path, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}

func TestRegisteredBackend(t *testing.T) {
	_, err := store.Open(&store.StorageConfig{Backend: "sqlite"})
	require.Error(t, err, "path is required")

	s, err := store.Open(&store.StorageConfig{Path: testDBPath(t, "factory")})
	require.NoError(t, err, "sqlite is the default backend")
	require.NoError(t, s.Close())
}
