// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package memory is a brute-force, process-local store backend used by
// tests and dry runs.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/artlens/artlens/internal/store"
)

func init() {
	store.RegisterBackend("memory", func(cfg *store.StorageConfig) (store.Store, error) {
		return New(cfg.Distance), nil
	})
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Collection = (*Collection)(nil)
)

// Store holds collections in memory.
type Store struct {
	mu          sync.Mutex
	distance    store.Distance
	collections map[string]*Collection
}

// New returns an empty store. An empty distance means cosine.
func New(distance store.Distance) *Store {
	if distance == "" {
		distance = store.DistanceCosine
	}
	return &Store{distance: distance, collections: map[string]*Collection{}}
}

func (s *Store) Collection(_ context.Context, name string, opts store.CollectionOptions) (store.Collection, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if err := store.CheckDimensions(c.info, opts); err != nil {
			return nil, err
		}
		return c, nil
	}
	if opts.Dimensions <= 0 {
		return nil, store.NotFound(name)
	}

	c := &Collection{
		info:  store.CollectionInfo{Name: name, Dimensions: opts.Dimensions, Distance: s.distance},
		index: map[string]int{},
	}
	s.collections[name] = c
	return c, nil
}

func (s *Store) Collections(_ context.Context) ([]store.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.CollectionInfo, 0, len(s.collections))
	for _, name := range slices.Sorted(maps.Keys(s.collections)) {
		out = append(out, s.collections[name].info)
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

// Collection keeps entries in insertion order.
type Collection struct {
	mu      sync.RWMutex
	info    store.CollectionInfo
	entries []store.Entry
	index   map[string]int
}

func (c *Collection) Info() store.CollectionInfo { return c.info }

func (c *Collection) Upsert(_ context.Context, e store.Entry) error {
	if err := store.ValidateEntry(c.info, e); err != nil {
		return err
	}
	e = clone(e)

	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[e.ID]; ok {
		c.entries[i] = e
		return nil
	}
	c.index[e.ID] = len(c.entries)
	c.entries = append(c.entries, e)
	return nil
}

func (c *Collection) Get(_ context.Context, req store.GetRequest) ([]store.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var picked []store.Entry
	if len(req.IDs) > 0 {
		for _, id := range req.IDs {
			if i, ok := c.index[id]; ok {
				picked = append(picked, c.entries[i])
			}
		}
	} else {
		start := min(max(req.Offset, 0), len(c.entries))
		end := len(c.entries)
		if req.Limit > 0 {
			end = min(start+req.Limit, end)
		}
		picked = c.entries[start:end]
	}

	out := make([]store.Entry, 0, len(picked))
	for _, e := range picked {
		out = append(out, project(clone(e), req.Include))
	}
	return out, nil
}

func (c *Collection) Query(_ context.Context, vector []float32, k int) ([]store.Result, error) {
	if err := store.ValidateVector(c.info, vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	results := make([]store.Result, 0, len(c.entries))
	for _, e := range c.entries {
		results = append(results, store.Result{
			ID:       e.ID,
			Distance: store.Measure(c.info.Distance, vector, e.Vector),
			Metadata: maps.Clone(e.Metadata),
			Document: e.Document,
		})
	}
	c.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	results = results[:min(k, len(results))]
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func (c *Collection) Count(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

func clone(e store.Entry) store.Entry {
	e.Vector = slices.Clone(e.Vector)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

func project(e store.Entry, inc store.Include) store.Entry {
	if !inc.Has(store.IncludeMetadata) {
		e.Metadata = nil
	}
	if !inc.Has(store.IncludeDocuments) {
		e.Document = ""
	}
	if !inc.Has(store.IncludeVectors) {
		e.Vector = nil
	}
	return e
}
