// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package hash provides a deterministic hashed-token embedder. It needs no
// network or model files and serves as the offline default and test stub.
// It is not a semantic model.
package hash

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/artlens/artlens/internal/embed"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// Name is the registry name of this provider.
const Name = "hash"

// DefaultDimensions is used when the configuration leaves dimensions unset.
const DefaultDimensions = 384

// shingle is the byte window hashed for image input.
const shingle = 32

func init() {
	embed.RegisterImage(Name, func(cfg embed.Config) (embed.ImageProvider, error) {
		return New(cfg.Dimensions)
	})
}

// Provider hashes tokens into a fixed number of signed buckets.
type Provider struct {
	dims int
}

// New returns a Provider producing vectors of the given size.
func New(dims int) (*Provider, error) {
	if dims == 0 {
		dims = DefaultDimensions
	}
	if dims < 0 {
		return nil, artlenserr.Errorf(artlenserr.CodeEmbedRequestInvalid, "hash: invalid dimensions %d", dims)
	}
	return &Provider{dims: dims}, nil
}

func (p *Provider) Name() string { return Name }

// EmbedText hashes lowercase word tokens. Purpose is ignored so documents
// and queries share one space.
func (p *Provider) EmbedText(_ context.Context, text string, _ embed.Purpose) ([]float32, error) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		tokens = []string{strings.TrimSpace(text)}
	}

	vec := make([]float32, p.dims)
	for _, tok := range tokens {
		p.add(vec, []byte(tok))
	}
	return vec, nil
}

// EmbedImage hashes overlapping byte windows of the encoded image.
func (p *Provider) EmbedImage(_ context.Context, img *types.Image) ([]float32, error) {
	vec := make([]float32, p.dims)
	data := img.Data
	for start := 0; start < len(data); start += shingle / 2 {
		end := min(start+shingle, len(data))
		p.add(vec, data[start:end])
		if end == len(data) {
			break
		}
	}
	return vec, nil
}

func (p *Provider) add(vec []float32, tok []byte) {
	h := fnv.New64a()
	_, _ = h.Write(tok)
	sum := h.Sum64()

	idx := int(sum % uint64(p.dims))
	if sum>>63 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}
