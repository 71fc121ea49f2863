// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package openai embeds text through the OpenAI /v1/embeddings API or any
// compatible server (text-embeddings-inference, infinity, vLLM) hosting
// models such as BGE.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/artlens/artlens/internal/embed"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// Name is the registry name of this provider.
const Name = "openai"

// DefaultModel is used when the configuration leaves the model unset.
const DefaultModel = "text-embedding-3-small"

func init() {
	embed.RegisterText(Name, func(cfg embed.Config) (embed.TextProvider, error) {
		return New(Config{APIKey: cfg.APIKey, BaseURL: cfg.Endpoint, Model: cfg.Model, Dimensions: cfg.Dimensions})
	})
}

// Config holds OpenAI embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, for compatible servers and tests
	Model      string
	Dimensions int // optional, only honoured by models that support truncation
}

// Provider implements embed.TextProvider.
type Provider struct {
	client openaisdk.Client
	config Config
}

// New creates a provider. An API key is required unless a custom BaseURL
// points at a self-hosted server.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, artlenserr.New(artlenserr.CodeEmbedRequestInvalid, "openai: missing api_key in config",
			artlenserr.FieldProvider(Name))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, option.WithAPIKey("unused"))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// The pipeline owns retry policy.
	opts = append(opts, option.WithMaxRetries(0))

	return &Provider{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) EmbedText(ctx context.Context, text string, _ embed.Purpose) ([]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openaisdk.EmbeddingModel(p.config.Model),
	}
	if p.config.Dimensions > 0 {
		params.Dimensions = openaisdk.Int(int64(p.config.Dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeEmbedUpstreamFailure, "openai: embeddings request",
			artlenserr.FieldProvider(Name), artlenserr.Field("model", p.config.Model))
	}
	if len(resp.Data) == 0 {
		return nil, artlenserr.New(artlenserr.CodeEmbedResponseInvalid, "openai: response has no embeddings",
			artlenserr.FieldProvider(Name))
	}
	return embed.Float64s(resp.Data[0].Embedding), nil
}
