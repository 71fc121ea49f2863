// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package ingest_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/embed"
	"github.com/artlens/artlens/internal/embed/hash"
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
	"github.com/stretchr/testify/require"
)

const testDims = 64

// captureLogs routes the default slog logger into a buffer for the rest of
// the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })
	return buf
}

// logLines returns the captured JSON log lines whose message is msg.
func logLines(buf *bytes.Buffer, msg string) []string {
	var out []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `"msg":"`+msg+`"`) {
			out = append(out, line)
		}
	}
	return out
}

func newModels(t *testing.T) (text, image *embed.Model) {
	t.Helper()
	p, err := hash.New(testDims)
	require.NoError(t, err)
	text, err = embed.NewTextModel(p, embed.Options{})
	require.NoError(t, err)
	image, err = embed.NewImageModel(p, embed.Options{})
	require.NoError(t, err)
	return text, image
}

// fakeImages serves deterministic bytes per ref and fails refs in failing.
type fakeImages struct {
	mu      sync.Mutex
	failing map[string]bool
	fetched []string
}

func (f *fakeImages) Fetch(_ context.Context, ref string) (*types.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ref)
	if f.failing[ref] {
		return nil, artlenserr.New(artlenserr.CodeFetchImageForbidden, "image fetch forbidden",
			artlenserr.Field("ref", ref))
	}
	return &types.Image{Ref: ref, Data: []byte("image bytes for " + ref), MIMEType: "image/jpeg"}, nil
}

// failingStore wraps a store so upserts of the given ids fail.
type failingStore struct {
	store.Store
	ids map[string]bool
}

func (s *failingStore) Collection(ctx context.Context, name string, opts store.CollectionOptions) (store.Collection, error) {
	c, err := s.Store.Collection(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	return &failingCollection{Collection: c, ids: s.ids}, nil
}

type failingCollection struct {
	store.Collection
	ids map[string]bool
}

func (c *failingCollection) Upsert(ctx context.Context, e store.Entry) error {
	if c.ids[e.ID] {
		return artlenserr.New(artlenserr.CodeStoreCollectionUpsertFailure, "disk full",
			artlenserr.FieldArtworkID(e.ID))
	}
	return c.Collection.Upsert(ctx, e)
}

func publicRecord(id int) *artwork.Record {
	return &artwork.Record{
		ID:             artwork.ID(fmt.Sprint(id)),
		Title:          fmt.Sprintf("Study no. %d", id),
		ArtistTitle:    "Claude Monet",
		ImageID:        fmt.Sprintf("img-%d", id),
		IsPublicDomain: true,
	}
}

func ids(t *testing.T, s store.Store, name string) []string {
	t.Helper()
	c, err := s.Collection(context.Background(), name, store.CollectionOptions{})
	if artlenserr.IsNotFound(err) {
		return nil
	}
	require.NoError(t, err)
	entries, err := c.Get(context.Background(), store.GetRequest{})
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
