// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package eval_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/eval"
	"github.com/artlens/artlens/internal/query"
	"github.com/artlens/artlens/internal/store"
	"github.com/artlens/artlens/internal/store/memory"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// scriptedSearcher answers each query text with fixed results.
type scriptedSearcher struct {
	answers map[string][]store.Result
	fail    map[string]bool
	calls   []string
}

func (s *scriptedSearcher) Query(_ context.Context, text string, _ types.SearchMode, k int) ([]store.Result, error) {
	s.calls = append(s.calls, text)
	if s.fail[text] {
		return nil, errors.New("index offline")
	}
	rs := s.answers[text]
	if len(rs) > k {
		rs = rs[:k]
	}
	return rs, nil
}

func hit(id, artist string) store.Result {
	return store.Result{ID: id, Metadata: map[string]any{artwork.MetaArtistTitle: artist}}
}

func TestEvaluateTitles(t *testing.T) {
	s := &scriptedSearcher{
		answers: map[string][]store.Result{
			"A": {hit("a", ""), hit("x", "")},
			"B": {hit("x", ""), hit("y", ""), hit("b", "")},
			"C": {hit("x", "")},
		},
		fail: map[string]bool{"D": true},
	}
	items := []eval.Item{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
		{ID: "c", Title: "C"},
		{ID: "d", Title: "D"},
		{ID: "e", Title: ""},
		{ID: "f", Title: artwork.UnknownTitle},
	}

	res := eval.EvaluateTitles(context.Background(), s, types.SearchModeText, items, 3)

	assert.Equal(t, []int{1, 3, 0}, res.Positions)
	assert.Equal(t, 3, res.Evaluated)
	assert.Equal(t, 1, res.Errors)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 2.0 / 3}, []float64(res.Recall), 1e-9)
	assert.Equal(t, []string{"A", "B", "C", "D"}, s.calls, "untitled items are not queried")
}

func TestEvaluateArtists(t *testing.T) {
	s := &scriptedSearcher{
		answers: map[string][]store.Result{
			"Monet": {hit("1", "Renoir"), hit("2", "Monet"), hit("3", "Monet"), hit("4", "Monet")},
			"Degas": {hit("5", "Degas")},
		},
		fail: map[string]bool{"Cassatt": true},
	}
	items := []eval.Item{
		{ID: "2", Artist: "Monet"},
		{ID: "5", Artist: "Degas"},
		{ID: "6", Artist: "Cassatt"},
		{ID: "7", Artist: artwork.UnknownArtist},
		{ID: "8", Artist: "Unknown"},
	}

	res := eval.EvaluateArtists(context.Background(), s, types.SearchModeText, items, 3)

	assert.Equal(t, 2, res.Evaluated)
	assert.Equal(t, 1, res.Errors)
	assert.InDeltaSlice(t, []float64{0.5, 1, 1}, []float64(res.Recall), 1e-9)
	// Monet: 2 of top 3, Degas: 1 of top 3.
	assert.InDelta(t, (2.0/3+1.0/3)/2, res.Purity, 1e-9)
}

func TestRecallCurve_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		maxK := 1 + rng.IntN(15)
		positions := make([]int, 1+rng.IntN(40))
		for i := range positions {
			positions[i] = rng.IntN(maxK + 1)
		}

		curve := eval.RecallCurve(positions, maxK)
		require.Len(t, curve, maxK)
		for k := 2; k <= maxK; k++ {
			assert.GreaterOrEqual(t, curve.At(k), curve.At(k-1))
		}
		assert.GreaterOrEqual(t, curve.At(maxK), curve.At(1))
		assert.LessOrEqual(t, curve.At(maxK), 1.0)
	}
}

func TestRecallCurve_Empty(t *testing.T) {
	assert.Equal(t, eval.Curve{0, 0}, eval.RecallCurve(nil, 2))
	assert.Zero(t, eval.Curve{0.5}.At(3))
}

func TestArtistCounts(t *testing.T) {
	counts := eval.ArtistCounts([]eval.Item{
		{Artist: "Monet"}, {Artist: "Degas"}, {Artist: "Monet"}, {Artist: ""}, {Artist: "Unknown"},
	})
	assert.Equal(t, []eval.ArtistCount{
		{Artist: "Monet", Count: 2},
		{Artist: artwork.UnknownArtist, Count: 2},
		{Artist: "Degas", Count: 1},
	}, counts)
}

func TestRun(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	c, err := s.Collection(context.Background(), store.TextCollection, store.CollectionOptions{Dimensions: 2})
	require.NoError(t, err)
	for _, e := range []store.Entry{
		{ID: "1", Vector: []float32{1, 0}, Metadata: map[string]any{artwork.MetaTitle: "A", artwork.MetaArtistTitle: "Monet"}},
		{ID: "2", Vector: []float32{0, 1}, Metadata: map[string]any{artwork.MetaTitle: "B", artwork.MetaArtistTitle: "Monet"}},
		{ID: "3", Vector: []float32{1, 1}, Metadata: map[string]any{artwork.MetaTitle: "C", artwork.MetaArtistTitle: "Degas"}},
	} {
		require.NoError(t, c.Upsert(context.Background(), e))
	}

	searcher := &scriptedSearcher{answers: map[string][]store.Result{
		"A":     {hit("1", "Monet")},
		"Monet": {hit("2", "Monet")},
	}}

	report, err := eval.Run(context.Background(), searcher, c, eval.Options{SampleLimit: 2, MaxK: 2,
		Modes: []types.SearchMode{types.SearchModeText}})
	require.NoError(t, err)

	assert.Equal(t, store.TextCollection, report.Collection)
	assert.Equal(t, 2, report.Sampled)
	assert.Equal(t, []eval.ArtistCount{{Artist: "Monet", Count: 2}}, report.Artists)
	require.Len(t, report.Modes, 1)
	assert.Equal(t, []int{1, 0}, report.Modes[0].Title.Positions)
	assert.InDelta(t, 1.0, report.Modes[0].Artist.Recall.At(2), 1e-9)

	_, err = eval.Run(context.Background(), searcher, c, eval.Options{Modes: []types.SearchMode{"sketch"}})
	require.Error(t, err)
}

func TestRun_MaxKAboveQueryLimit(t *testing.T) {
	s := memory.New(store.DistanceCosine)
	c, err := s.Collection(context.Background(), store.TextCollection, store.CollectionOptions{Dimensions: 2})
	require.NoError(t, err)
	require.NoError(t, c.Upsert(context.Background(), store.Entry{ID: "1", Vector: []float32{1, 0},
		Metadata: map[string]any{artwork.MetaTitle: "A", artwork.MetaArtistTitle: "Monet"}}))

	searcher := &scriptedSearcher{}
	_, err = eval.Run(context.Background(), searcher, c, eval.Options{MaxK: query.MaxResults + 1})
	require.Error(t, err)
	assert.True(t, artlenserr.HasCode(err, artlenserr.CodeEvalInvalidInput))
	assert.Empty(t, searcher.calls)

	_, err = eval.Run(context.Background(), searcher, c, eval.Options{MaxK: query.MaxResults,
		Modes: []types.SearchMode{types.SearchModeText}})
	require.NoError(t, err)
}

func TestEncode(t *testing.T) {
	r := &eval.Report{Collection: "c", Sampled: 1, MaxK: 1, Modes: []eval.ModeReport{{
		Mode:  types.SearchModeHybrid,
		Title: eval.TitleResult{Recall: eval.Curve{1}, Positions: []int{1}, Evaluated: 1},
	}}}

	var buf bytes.Buffer
	require.NoError(t, eval.Encode(&buf, r, eval.FormatJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(1), decoded["max_k"])

	buf.Reset()
	require.NoError(t, eval.Encode(&buf, r, eval.FormatYAML))
	var y map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &y))
	assert.Equal(t, "c", y["collection"])

	f, err := eval.ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, eval.FormatYAML, f)
	_, err = eval.ParseFormat("csv")
	require.Error(t, err)
}
