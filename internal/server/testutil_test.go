// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package server_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artlens/artlens/internal/server"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/health"
	"github.com/artlens/artlens/pkg/types"
)

type searchCall struct {
	Text string
	Mode types.SearchMode
	N    int
}

type stubSearcher struct {
	mu    sync.Mutex
	calls []searchCall
	hits  []types.ArtworkHit
	err   error
}

func (s *stubSearcher) GetResults(_ context.Context, text string, mode types.SearchMode, n int) ([]types.ArtworkHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, searchCall{Text: text, Mode: mode, N: n})
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(text) == "" {
		return []types.ArtworkHit{}, nil
	}
	return s.hits, nil
}

func (s *stubSearcher) Modes() []types.SearchMode {
	return []types.SearchMode{types.SearchModeText, types.SearchModeVision}
}

type stubImages map[string]*types.Image

func (s stubImages) Fetch(_ context.Context, ref string) (*types.Image, error) {
	img, ok := s[ref]
	if !ok {
		return nil, artlenserr.New(artlenserr.CodeFetchImageForbidden, "denied",
			artlenserr.Field("image_id", ref))
	}
	return img, nil
}

type stubHealth health.Metrics

func (h stubHealth) Health() health.Metrics { return health.Metrics(h) }

func newTestServer(t *testing.T, svc *server.Services) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   svc,
	})
	require.NoError(t, err)
	return srv
}
