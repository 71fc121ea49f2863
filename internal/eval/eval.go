// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package eval scores retrieval quality by re-querying stored artworks
// with their own title and artist.
package eval

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/query"
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

const (
	DefaultSampleLimit = 50
	DefaultMaxK        = 10
)

// Searcher is the query capability the harness needs.
type Searcher interface {
	Query(ctx context.Context, text string, mode types.SearchMode, k int) ([]store.Result, error)
}

// Item is one sampled artwork.
type Item struct {
	ID     string
	Title  string
	Artist string
}

// Options configure a run.
type Options struct {
	SampleLimit int
	MaxK        int
	Modes       []types.SearchMode
}

func (o Options) withDefaults() Options {
	if o.SampleLimit <= 0 {
		o.SampleLimit = DefaultSampleLimit
	}
	if o.MaxK <= 0 {
		o.MaxK = DefaultMaxK
	}
	if len(o.Modes) == 0 {
		o.Modes = []types.SearchMode{types.SearchModeText, types.SearchModeHybrid}
	}
	return o
}

// Curve maps k (1..max_k) to a rate. Index 0 is k=1.
type Curve []float64

// At returns the value at k, or 0 when k is out of range.
func (c Curve) At(k int) float64 {
	if k < 1 || k > len(c) {
		return 0
	}
	return c[k-1]
}

// TitleResult is the outcome of title self-retrieval.
type TitleResult struct {
	Recall Curve `json:"recall" yaml:"recall"`
	// Positions holds the 1-based rank of each evaluated item's own id, or
	// 0 when it was not in the top max_k.
	Positions []int `json:"positions" yaml:"positions"`
	Evaluated int   `json:"evaluated" yaml:"evaluated"`
	Errors    int   `json:"errors" yaml:"errors"`
}

// ArtistResult is the outcome of artist retrieval.
type ArtistResult struct {
	Recall    Curve   `json:"recall" yaml:"recall"`
	Purity    float64 `json:"purity" yaml:"purity"`
	Evaluated int     `json:"evaluated" yaml:"evaluated"`
	Errors    int     `json:"errors" yaml:"errors"`
}

// ModeReport holds both protocols for one mode.
type ModeReport struct {
	Mode   types.SearchMode `json:"mode" yaml:"mode"`
	Title  TitleResult      `json:"title" yaml:"title"`
	Artist ArtistResult     `json:"artist" yaml:"artist"`
}

// ArtistCount is the number of sampled works by one artist.
type ArtistCount struct {
	Artist string `json:"artist" yaml:"artist"`
	Count  int    `json:"count" yaml:"count"`
}

// Report is the result of a full evaluation.
type Report struct {
	Collection string        `json:"collection" yaml:"collection"`
	Sampled    int           `json:"sampled" yaml:"sampled"`
	MaxK       int           `json:"max_k" yaml:"max_k"`
	Artists    []ArtistCount `json:"artists" yaml:"artists"`
	Modes      []ModeReport  `json:"modes" yaml:"modes"`
}

// Sample reads up to limit items from a collection in storage order.
func Sample(ctx context.Context, c store.Collection, limit int) ([]Item, error) {
	entries, err := c.Get(ctx, store.GetRequest{Limit: limit, Include: store.IncludeMetadata})
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeEvalSampleFailure, "sampling collection",
			artlenserr.FieldCollection(c.Info().Name))
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, Item{
			ID:     e.ID,
			Title:  metaString(e.Metadata, artwork.MetaTitle),
			Artist: metaString(e.Metadata, artwork.MetaArtistTitle),
		})
	}
	return items, nil
}

// Run samples c and evaluates every configured mode.
func Run(ctx context.Context, s Searcher, c store.Collection, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	if opts.MaxK > query.MaxResults {
		return nil, artlenserr.New(artlenserr.CodeEvalInvalidInput, "max_k exceeds the query result limit",
			artlenserr.Field("max_k", opts.MaxK), artlenserr.Field("limit", query.MaxResults))
	}
	for _, m := range opts.Modes {
		if !m.Valid() {
			return nil, artlenserr.New(artlenserr.CodeEvalInvalidInput, "unknown search mode",
				artlenserr.Field("mode", string(m)))
		}
	}

	items, err := Sample(ctx, c, opts.SampleLimit)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Collection: c.Info().Name,
		Sampled:    len(items),
		MaxK:       opts.MaxK,
		Artists:    ArtistCounts(items),
	}
	for _, m := range opts.Modes {
		slog.Info("evaluating", "mode", string(m), "items", len(items), "max_k", opts.MaxK)
		report.Modes = append(report.Modes, ModeReport{
			Mode:   m,
			Title:  EvaluateTitles(ctx, s, m, items, opts.MaxK),
			Artist: EvaluateArtists(ctx, s, m, items, opts.MaxK),
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// EvaluateTitles queries each item's title and looks for the item's own id
// in the top maxK. Items without a title are not evaluated. Query errors
// are counted and excluded from the denominator.
func EvaluateTitles(ctx context.Context, s Searcher, mode types.SearchMode, items []Item, maxK int) TitleResult {
	maxK = cmp.Or(max(maxK, 0), DefaultMaxK)
	res := TitleResult{}
	for _, it := range items {
		if !known(it.Title, artwork.UnknownTitle) {
			continue
		}
		results, err := s.Query(ctx, it.Title, mode, maxK)
		if err != nil {
			res.Errors++
			slog.Debug("title query failed", "artwork_id", it.ID, "error", err)
			continue
		}
		pos := 0
		for i, r := range limit(results, maxK) {
			if r.ID == it.ID {
				pos = i + 1
				break
			}
		}
		res.Positions = append(res.Positions, pos)
	}
	res.Evaluated = len(res.Positions)
	res.Recall = RecallCurve(res.Positions, maxK)
	return res
}

// EvaluateArtists queries each item's artist. Recall@k is true once any
// top-k result shares the artist; purity is the mean share of the top maxK
// with that artist.
func EvaluateArtists(ctx context.Context, s Searcher, mode types.SearchMode, items []Item, maxK int) ArtistResult {
	maxK = cmp.Or(max(maxK, 0), DefaultMaxK)
	res := ArtistResult{}
	hits := make([]int, maxK)
	var puritySum float64

	for _, it := range items {
		if !known(it.Artist, artwork.UnknownArtist) {
			continue
		}
		results, err := s.Query(ctx, it.Artist, mode, maxK)
		if err != nil {
			res.Errors++
			slog.Debug("artist query failed", "artwork_id", it.ID, "error", err)
			continue
		}
		res.Evaluated++

		same := 0
		found := false
		top := limit(results, maxK)
		for k := 1; k <= maxK; k++ {
			if k <= len(top) && sameArtist(top[k-1].Metadata, it.Artist) {
				same++
				found = true
			}
			if found {
				hits[k-1]++
			}
		}
		puritySum += float64(same) / float64(maxK)
	}

	res.Recall = make(Curve, maxK)
	if res.Evaluated > 0 {
		for i, h := range hits {
			res.Recall[i] = float64(h) / float64(res.Evaluated)
		}
		res.Purity = puritySum / float64(res.Evaluated)
	}
	return res
}

// RecallCurve turns 1-based hit positions (0 for a miss) into recall@k for
// k = 1..maxK. The curve is non-decreasing.
func RecallCurve(positions []int, maxK int) Curve {
	curve := make(Curve, maxK)
	if len(positions) == 0 {
		return curve
	}
	for k := 1; k <= maxK; k++ {
		hits := 0
		for _, p := range positions {
			if p > 0 && p <= k {
				hits++
			}
		}
		curve[k-1] = float64(hits) / float64(len(positions))
	}
	return curve
}

// ArtistCounts tallies sampled works per artist, most frequent first.
// Items without a known artist are grouped under the placeholder.
func ArtistCounts(items []Item) []ArtistCount {
	counts := map[string]int{}
	for _, it := range items {
		a := it.Artist
		if !known(a, artwork.UnknownArtist) {
			a = artwork.UnknownArtist
		}
		counts[a]++
	}
	out := make([]ArtistCount, 0, len(counts))
	for a, n := range counts {
		out = append(out, ArtistCount{Artist: a, Count: n})
	}
	slices.SortFunc(out, func(x, y ArtistCount) int {
		return cmp.Or(cmp.Compare(y.Count, x.Count), cmp.Compare(x.Artist, y.Artist))
	})
	return out
}

func limit(rs []store.Result, k int) []store.Result {
	if len(rs) > k {
		return rs[:k]
	}
	return rs
}

func sameArtist(meta map[string]any, artist string) bool {
	return metaString(meta, artwork.MetaArtistTitle) == artist
}

// known reports whether s carries a real value rather than a placeholder.
func known(s, placeholder string) bool {
	return s != "" && s != placeholder && s != "Unknown"
}

func metaString(meta map[string]any, key string) string {
	v, _ := meta[key].(string)
	return strings.TrimSpace(v)
}
