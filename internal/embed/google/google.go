// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package google embeds text and images through the Gemini EmbedContent
// API. Text and inline image parts share one embedding space when the
// configured model is multimodal, which is what hybrid search relies on.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/artlens/artlens/internal/embed"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// Name is the registry name of this provider.
const Name = "google"

// DefaultModel is used when the configuration leaves the model unset.
const DefaultModel = "gemini-embedding-001"

func init() {
	embed.RegisterImage(Name, func(cfg embed.Config) (embed.ImageProvider, error) {
		return New(Config{APIKey: cfg.APIKey, BaseURL: cfg.Endpoint, Model: cfg.Model, Dimensions: cfg.Dimensions})
	})
}

// Config holds Gemini embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// Provider implements embed.ImageProvider.
type Provider struct {
	client *genai.Client
	config Config
}

// New creates a provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, artlenserr.New(artlenserr.CodeEmbedRequestInvalid, "google: missing api_key in config",
			artlenserr.FieldProvider(Name))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, artlenserr.Wrapf(err, artlenserr.CodeEmbedUpstreamFailure, "google: creating client")
	}
	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) EmbedText(ctx context.Context, text string, purpose embed.Purpose) ([]float32, error) {
	content := genai.NewContentFromText(text, genai.RoleUser)
	return p.embed(ctx, content, taskType(purpose))
}

func (p *Provider) EmbedImage(ctx context.Context, img *types.Image) ([]float32, error) {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	content := genai.NewContentFromBytes(img.Data, mime, genai.RoleUser)
	return p.embed(ctx, content, taskType(embed.PurposeDocument))
}

func (p *Provider) embed(ctx context.Context, content *genai.Content, task string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: task}
	if p.config.Dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(p.config.Dimensions))
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.config.Model, []*genai.Content{content}, cfg)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeEmbedUpstreamFailure, "google: embed content",
			artlenserr.FieldProvider(Name), artlenserr.Field("model", p.config.Model))
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, artlenserr.New(artlenserr.CodeEmbedResponseInvalid, "google: response has no embeddings",
			artlenserr.FieldProvider(Name))
	}
	return resp.Embeddings[0].Values, nil
}

func taskType(purpose embed.Purpose) string {
	if purpose == embed.PurposeQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}
