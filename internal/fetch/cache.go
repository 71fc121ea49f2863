// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package fetch

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// DefaultCacheSize is the number of images kept by NewCached when size is
// not positive.
const DefaultCacheSize = 256

// CachedFetcher keeps recently fetched images in memory. Failures are not
// cached, so a later call retries.
type CachedFetcher struct {
	src   Source
	cache *lru.Cache[string, *types.Image]
}

var _ Source = (*CachedFetcher)(nil)

// NewCached wraps src with an LRU cache of size entries.
func NewCached(src Source, size int) (*CachedFetcher, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *types.Image](size)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeFetchRequestInvalid, "creating image cache")
	}
	return &CachedFetcher{src: src, cache: cache}, nil
}

func (c *CachedFetcher) Fetch(ctx context.Context, ref string) (*types.Image, error) {
	if img, ok := c.cache.Get(ref); ok {
		return img, nil
	}
	img, err := c.src.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.cache.Add(ref, img)
	return img, nil
}

// Len reports the number of cached images.
func (c *CachedFetcher) Len() int { return c.cache.Len() }
