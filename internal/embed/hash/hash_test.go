// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package hash_test

import (
	"context"
	"testing"

	"github.com/artlens/artlens/internal/embed"
	"github.com/artlens/artlens/internal/embed/hash"
	"github.com/artlens/artlens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ embed.ImageProvider = (*hash.Provider)(nil)

func dot(a, b embed.Vector) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestProvider_Deterministic(t *testing.T) {
	p, err := hash.New(64)
	require.NoError(t, err)

	a, err := p.EmbedText(context.Background(), "Starry Night", embed.PurposeDocument)
	require.NoError(t, err)
	b, err := p.EmbedText(context.Background(), "starry  night!", embed.PurposeQuery)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "case, punctuation and purpose must not change the vector")
}

func TestProvider_DefaultDimensions(t *testing.T) {
	p, err := hash.New(0)
	require.NoError(t, err)
	v, err := p.EmbedText(context.Background(), "x", embed.PurposeDocument)
	require.NoError(t, err)
	assert.Len(t, v, hash.DefaultDimensions)

	_, err = hash.New(-1)
	require.Error(t, err)
}

func TestProvider_SharedTokensAreCloser(t *testing.T) {
	m, err := embed.NewText(embed.Config{Provider: hash.Name, Dimensions: 256})
	require.NoError(t, err)
	ctx := context.Background()

	q, err := m.EmbedText(ctx, "van gogh", embed.PurposeQuery)
	require.NoError(t, err)
	near, err := m.EmbedText(ctx, "Sunflowers by Van Gogh", embed.PurposeDocument)
	require.NoError(t, err)
	far, err := m.EmbedText(ctx, "Nighthawks by Edward Hopper", embed.PurposeDocument)
	require.NoError(t, err)

	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestProvider_PunctuationOnlyText(t *testing.T) {
	p, err := hash.New(16)
	require.NoError(t, err)
	v, err := p.EmbedText(context.Background(), "?!", embed.PurposeDocument)
	require.NoError(t, err)
	assert.NotEqual(t, make([]float32, 16), v)
}

func TestProvider_EmbedImage(t *testing.T) {
	m, err := embed.NewImage(embed.Config{Provider: hash.Name, Dimensions: 32})
	require.NoError(t, err)

	img := &types.Image{Data: []byte("\xff\xd8\xff\xe0 not really a jpeg but long enough to shingle a few times")}
	a, err := m.EmbedImage(context.Background(), img)
	require.NoError(t, err)
	b, err := m.EmbedImage(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, dot(a, a), 1e-5)
}
