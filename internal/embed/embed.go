// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package embed defines the text and image embedding capabilities and the
// Model handle that turns raw provider output into unit-norm vectors.
package embed

import (
	"context"
	"math"
	"strings"
	"sync"

	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/health"
	"github.com/artlens/artlens/pkg/types"
)

// Vector is a fixed-dimension embedding. Vectors returned by a Model have
// unit L2 norm.
type Vector []float32

// Purpose tells a text provider which side of a retrieval pair it encodes.
type Purpose int

const (
	PurposeDocument Purpose = iota
	PurposeQuery
)

func (p Purpose) String() string {
	if p == PurposeQuery {
		return "query"
	}
	return "document"
}

// TextProvider is a raw text embedding backend.
type TextProvider interface {
	Name() string
	EmbedText(ctx context.Context, text string, purpose Purpose) ([]float32, error)
}

// ImageProvider is a raw image embedding backend. Its EmbedText is the
// model's text tower, sharing the image embedding space.
type ImageProvider interface {
	TextProvider
	EmbedImage(ctx context.Context, img *types.Image) ([]float32, error)
}

// Options tune a Model.
type Options struct {
	// Dimensions pins the vector size. Zero accepts the first size the
	// provider returns.
	Dimensions int
	// DocumentPrefix and QueryPrefix are prepended to text before it is
	// sent to the provider, e.g. BGE-style retrieval instructions.
	DocumentPrefix string
	QueryPrefix    string
}

// Model wraps a provider loaded once per process. It skips blank input,
// checks dimensions, normalizes output and tracks provider health.
type Model struct {
	text   TextProvider
	image  ImageProvider
	opts   Options
	health *HealthTracker

	mu   sync.Mutex
	dims int
}

// NewTextModel creates a Model for a text-only provider.
func NewTextModel(p TextProvider, opts Options) (*Model, error) {
	return newModel(p, nil, opts)
}

// NewImageModel creates a Model for a multimodal provider.
func NewImageModel(p ImageProvider, opts Options) (*Model, error) {
	return newModel(p, p, opts)
}

func newModel(text TextProvider, image ImageProvider, opts Options) (*Model, error) {
	if text == nil {
		return nil, artlenserr.New(artlenserr.CodeEmbedRequestInvalid, "embedding provider is nil")
	}
	if opts.Dimensions < 0 {
		return nil, artlenserr.Errorf(artlenserr.CodeEmbedRequestInvalid,
			"dimensions must not be negative, got %d", opts.Dimensions)
	}
	h, err := NewHealthTracker(DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}
	return &Model{text: text, image: image, opts: opts, health: h, dims: opts.Dimensions}, nil
}

// Name returns the provider name.
func (m *Model) Name() string { return m.text.Name() }

// Dimensions returns the configured or first observed vector dimension.
func (m *Model) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dims
}

// SupportsImages reports whether EmbedImage can be called.
func (m *Model) SupportsImages() bool { return m.image != nil }

// Health returns a snapshot of the provider's health.
func (m *Model) Health() health.Metrics { return m.health.HealthMetrics() }

// EmbedText embeds text. Blank input returns an empty vector and no error;
// callers must skip storing it.
func (m *Model) EmbedText(ctx context.Context, text string, purpose Purpose) (Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	prefix := m.opts.DocumentPrefix
	if purpose == PurposeQuery {
		prefix = m.opts.QueryPrefix
	}
	raw, err := m.text.EmbedText(ctx, prefix+text, purpose)
	return m.finish(raw, err, types.ModalityText)
}

// EmbedImage embeds a decoded image.
func (m *Model) EmbedImage(ctx context.Context, img *types.Image) (Vector, error) {
	if m.image == nil {
		return nil, artlenserr.New(artlenserr.CodeEmbedRequestInvalid, "provider does not embed images",
			artlenserr.FieldProvider(m.Name()))
	}
	if img == nil || len(img.Data) == 0 {
		return nil, artlenserr.New(artlenserr.CodeEmbedEmptyInput, "image has no data",
			artlenserr.FieldProvider(m.Name()))
	}
	raw, err := m.image.EmbedImage(ctx, img)
	return m.finish(raw, err, types.ModalityImage)
}

func (m *Model) finish(raw []float32, err error, modality types.Modality) (Vector, error) {
	if err != nil {
		m.health.RecordFailure()
		if artlenserr.CodeOf(err) == "" {
			err = artlenserr.Wrap(err, artlenserr.CodeEmbedUpstreamFailure, "embedding request failed",
				artlenserr.FieldProvider(m.Name()), artlenserr.FieldModality(string(modality)))
		}
		return nil, err
	}
	if len(raw) == 0 {
		m.health.RecordFailure()
		return nil, artlenserr.New(artlenserr.CodeEmbedResponseInvalid, "provider returned an empty embedding",
			artlenserr.FieldProvider(m.Name()))
	}
	if want, ok := m.observe(len(raw)); !ok {
		m.health.RecordFailure()
		return nil, artlenserr.New(artlenserr.CodeEmbedDimensionMismatch, "embedding dimension mismatch",
			artlenserr.FieldProvider(m.Name()), artlenserr.Field("want", want), artlenserr.Field("got", len(raw)))
	}

	v, ok := Normalize(raw)
	if !ok {
		m.health.RecordFailure()
		return nil, artlenserr.New(artlenserr.CodeEmbedResponseInvalid, "provider returned a zero or non-finite embedding",
			artlenserr.FieldProvider(m.Name()))
	}
	m.health.RecordSuccess()
	return v, nil
}

// observe pins the dimension on first use and reports whether n matches it.
func (m *Model) observe(n int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dims == 0 {
		m.dims = n
	}
	return m.dims, n == m.dims
}

// Normalize returns a unit-norm copy of v. It reports false when v has zero
// norm or contains NaN or Inf.
func Normalize(v []float32) (Vector, bool) {
	var sum float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		sum += f * f
	}
	if sum == 0 {
		return nil, false
	}

	norm := math.Sqrt(sum)
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

// Float64s converts an SDK response vector.
func Float64s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
