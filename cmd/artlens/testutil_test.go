// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artlens/artlens/internal/secrets"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// memSecrets is an in-memory secrets.Store.
type memSecrets struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemSecrets() *memSecrets { return &memSecrets{data: map[string]string{}} }

func (m *memSecrets) Set(service, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[service+"/"+key] = value
	return nil
}

func (m *memSecrets) Get(service, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", artlenserr.Errorf(artlenserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *memSecrets) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[service+"/"+key]; !ok {
		return artlenserr.Errorf(artlenserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.data, service+"/"+key)
	return nil
}

// isolate points HOME at a temp dir and swaps in an in-memory keyring.
func isolate(t *testing.T) (string, *memSecrets) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	store := newMemSecrets()
	old := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = old })
	return home, store
}

// run executes the root command and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const fixtureRecords = `[
  {"id": 1, "title": "Sunflowers", "artist_title": "Vincent van Gogh", "image_id": "img-1", "is_public_domain": true},
  {"id": 2, "title": "Water Lilies", "artist_title": "Claude Monet", "image_id": "img-2", "is_public_domain": true},
  {"id": 3, "title": "The Bedroom", "artist_title": "Vincent van Gogh", "image_id": "img-3", "is_public_domain": false},
  {"title": "no id"},
  {"id": 4, "title": "Nighthawks", "artist_title": "Edward Hopper", "is_public_domain": true}
]`

// iiifServer serves a small PNG for every image except img-3, which is
// forbidden.
func iiifServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/img-3/") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeFixture lays out records and a config file under dir and returns the
// config path.
func writeFixture(t *testing.T, dir, iiifURL string) string {
	t.Helper()
	src := filepath.Join(dir, "artworks")
	require.NoError(t, os.MkdirAll(src, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(src, "page-1.json"), []byte(fixtureRecords), 0o600))

	cfg := fmt.Sprintf(`storage:
  backend: sqlite
  path: %s
embedding:
  text:
    provider: hash
    dimensions: 1024
    document_prefix: ""
  image:
    provider: hash
    dimensions: 64
fetch:
  iiif_base_url: %s/iiif
  warmup_url: ""
ingest:
  source_dir: %s
  image_policy: relaxed
  ledger_path: %s
eval:
  sample_limit: 10
  max_k: 3
  modes: [text, hybrid]
`, filepath.Join(dir, "data", "artlens.db"), iiifURL, src, filepath.Join(dir, "data", "ledger.db"))

	path := filepath.Join(dir, "artlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}
