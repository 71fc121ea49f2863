// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package config

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/embed"
	"github.com/artlens/artlens/internal/fetch"
	"github.com/artlens/artlens/internal/ingest"
	"github.com/artlens/artlens/internal/query"
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// EnvPrefix is the prefix of environment overrides, e.g. ARTLENS_STORAGE_PATH.
const EnvPrefix = "ARTLENS"

// Config is the top-level artlens configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Query     QueryConfig     `mapstructure:"query"`
	Eval      EvalConfig      `mapstructure:"eval"`
	Server    ServerConfig    `mapstructure:"server"`
}

// StorageConfig selects the vector store backend and collection names.
type StorageConfig struct {
	Backend         string `mapstructure:"backend"`
	Path            string `mapstructure:"path"`
	DSN             string `mapstructure:"dsn"`
	Distance        string `mapstructure:"distance"`
	TextCollection  string `mapstructure:"text_collection"`
	ImageCollection string `mapstructure:"image_collection"`
}

// EmbeddingConfig holds one model per modality.
type EmbeddingConfig struct {
	Text  ModelConfig `mapstructure:"text"`
	Image ModelConfig `mapstructure:"image"`
}

// ModelConfig configures one embedding provider.
type ModelConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	Dimensions     int    `mapstructure:"dimensions"`
	APIKey         string `mapstructure:"api_key"`
	Endpoint       string `mapstructure:"endpoint"`
	DocumentPrefix string `mapstructure:"document_prefix"`
	QueryPrefix    string `mapstructure:"query_prefix"`
}

// FetchConfig controls IIIF image downloads.
type FetchConfig struct {
	IIIFBaseURL       string        `mapstructure:"iiif_base_url"`
	WarmupURL         string        `mapstructure:"warmup_url"`
	Size              int           `mapstructure:"size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	Referer           string        `mapstructure:"referer"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	CacheSize         int           `mapstructure:"cache_size"`
}

// IngestConfig controls ingestion runs.
type IngestConfig struct {
	SourceDir     string   `mapstructure:"source_dir"`
	ProgressEvery int      `mapstructure:"progress_every"`
	ImagePolicy   string   `mapstructure:"image_policy"`
	TextFallback  bool     `mapstructure:"text_fallback"`
	Modalities    []string `mapstructure:"modalities"`
	LedgerPath    string   `mapstructure:"ledger_path"`
}

// QueryConfig sets query defaults.
type QueryConfig struct {
	DefaultMode    string `mapstructure:"default_mode"`
	DefaultResults int    `mapstructure:"default_results"`
}

// EvalConfig sets evaluation defaults.
type EvalConfig struct {
	SampleLimit int      `mapstructure:"sample_limit"`
	MaxK        int      `mapstructure:"max_k"`
	Modes       []string `mapstructure:"modes"`
}

// ServerConfig controls the HTTP query surface.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RateLimit is per client IP. A zero rate disables it.
	RateLimit struct {
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		Burst             int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "data/artlens.db")
	v.SetDefault("storage.distance", string(store.DistanceCosine))
	v.SetDefault("storage.text_collection", store.TextCollection)
	v.SetDefault("storage.image_collection", store.ImageCollection)

	v.SetDefault("embedding.text.provider", "hash")
	v.SetDefault("embedding.text.document_prefix", "Represent this document for retrieval: ")
	v.SetDefault("embedding.image.provider", "hash")

	v.SetDefault("fetch.iiif_base_url", fetch.DefaultBaseURL)
	v.SetDefault("fetch.warmup_url", fetch.DefaultWarmupURL)
	v.SetDefault("fetch.size", fetch.DefaultSize)
	v.SetDefault("fetch.timeout", fetch.DefaultTimeout)
	v.SetDefault("fetch.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("fetch.referer", fetch.DefaultReferer)
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.cache_size", fetch.DefaultCacheSize)

	v.SetDefault("ingest.source_dir", "data/artworks")
	v.SetDefault("ingest.progress_every", ingest.DefaultProgressEvery)
	v.SetDefault("ingest.image_policy", string(artwork.ImagePolicyStrict))
	v.SetDefault("ingest.text_fallback", true)
	v.SetDefault("ingest.modalities", []string{string(types.ModalityText), string(types.ModalityImage)})
	v.SetDefault("ingest.ledger_path", "")

	v.SetDefault("query.default_mode", string(types.SearchModeText))
	v.SetDefault("query.default_results", 6)

	v.SetDefault("eval.sample_limit", 50)
	v.SetDefault("eval.max_k", 10)
	v.SetDefault("eval.modes", []string{string(types.SearchModeText), string(types.SearchModeHybrid)})

	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit.requests_per_second", 0)
	v.SetDefault("server.rate_limit.burst", 20)
}

// SetupEnv binds ARTLENS_* environment variables, with "." mapped to "_".
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, artlenserr.Errorf(artlenserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, artlenserr.Errorf(artlenserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from path (or defaults only when empty) with
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, artlenserr.Errorf(artlenserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// Validate checks the configuration for logical errors, collecting every
// issue rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateFetch()...)
	errs = append(errs, c.validateIngest()...)
	errs = append(errs, c.validateQuery()...)
	errs = append(errs, c.validateServer()...)

	return errs
}

func invalid(format string, args ...any) error {
	return artlenserr.Errorf(artlenserr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateStorage() []error {
	var errs []error

	switch c.Storage.Backend {
	case "sqlite", "memory":
		if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
			errs = append(errs, invalid("storage.path must not be empty for the sqlite backend"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, invalid("storage.dsn must not be empty for the postgres backend"))
		}
	default:
		errs = append(errs, invalid("storage.backend must be one of [sqlite, postgres, memory], got %q", c.Storage.Backend))
	}

	if !store.Distance(c.Storage.Distance).Valid() {
		errs = append(errs, invalid("storage.distance must be one of [cosine, l2], got %q", c.Storage.Distance))
	}

	if err := store.ValidateName(c.Storage.TextCollection); err != nil {
		errs = append(errs, invalid("storage.text_collection %q must match [a-z][a-z0-9_]*", c.Storage.TextCollection))
	}
	if err := store.ValidateName(c.Storage.ImageCollection); err != nil {
		errs = append(errs, invalid("storage.image_collection %q must match [a-z][a-z0-9_]*", c.Storage.ImageCollection))
	}
	if c.Storage.TextCollection != "" && c.Storage.TextCollection == c.Storage.ImageCollection {
		errs = append(errs, invalid("storage.text_collection and storage.image_collection must differ"))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	errs = append(errs, validateModel("embedding.text", c.Embedding.Text)...)
	errs = append(errs, validateModel("embedding.image", c.Embedding.Image)...)
	return errs
}

func validateModel(key string, m ModelConfig) []error {
	var errs []error
	if m.Provider == "" {
		errs = append(errs, invalid("%s.provider must not be empty", key))
	}
	if m.Dimensions < 0 {
		errs = append(errs, invalid("%s.dimensions must not be negative, got %d", key, m.Dimensions))
	}
	return errs
}

func (c *Config) validateFetch() []error {
	var errs []error

	if c.Fetch.IIIFBaseURL == "" {
		errs = append(errs, invalid("fetch.iiif_base_url must not be empty"))
	}
	if c.Fetch.Size <= 0 {
		errs = append(errs, invalid("fetch.size must be greater than 0, got %d", c.Fetch.Size))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, invalid("fetch.timeout must be greater than 0, got %s", c.Fetch.Timeout))
	}
	if c.Fetch.RequestsPerSecond < 0 {
		errs = append(errs, invalid("fetch.requests_per_second must not be negative, got %g", c.Fetch.RequestsPerSecond))
	}
	if c.Fetch.RequestsPerSecond > 0 && c.Fetch.Burst < 1 {
		errs = append(errs, invalid("fetch.burst must be at least 1 when rate limiting, got %d", c.Fetch.Burst))
	}
	if c.Fetch.CacheSize < 0 {
		errs = append(errs, invalid("fetch.cache_size must not be negative, got %d", c.Fetch.CacheSize))
	}

	return errs
}

func (c *Config) validateIngest() []error {
	var errs []error

	if _, err := artwork.ParseImagePolicy(c.Ingest.ImagePolicy); err != nil {
		errs = append(errs, invalid("ingest.image_policy must be one of [strict, relaxed], got %q", c.Ingest.ImagePolicy))
	}
	if c.Ingest.ProgressEvery < 0 {
		errs = append(errs, invalid("ingest.progress_every must not be negative, got %d", c.Ingest.ProgressEvery))
	}
	for i, m := range c.Ingest.Modalities {
		if !types.Modality(m).Valid() {
			errs = append(errs, invalid("ingest.modalities[%d] must be one of [text, image], got %q", i, m))
		}
	}

	return errs
}

func (c *Config) validateQuery() []error {
	var errs []error

	if _, err := types.ParseSearchMode(c.Query.DefaultMode); err != nil {
		errs = append(errs, invalid("query.default_mode must be one of [text, vision, hybrid], got %q", c.Query.DefaultMode))
	}
	if c.Query.DefaultResults <= 0 || c.Query.DefaultResults > query.MaxResults {
		errs = append(errs, invalid("query.default_results must be between 1 and %d, got %d",
			query.MaxResults, c.Query.DefaultResults))
	}
	if c.Eval.MaxK <= 0 || c.Eval.MaxK > query.MaxResults {
		errs = append(errs, invalid("eval.max_k must be between 1 and %d, got %d", query.MaxResults, c.Eval.MaxK))
	}
	if c.Eval.SampleLimit <= 0 {
		errs = append(errs, invalid("eval.sample_limit must be greater than 0, got %d", c.Eval.SampleLimit))
	}
	for i, m := range c.Eval.Modes {
		if !types.SearchMode(m).Valid() {
			errs = append(errs, invalid("eval.modes[%d] must be one of [text, vision, hybrid], got %q", i, m))
		}
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		return append(errs, invalid("server.listen must not be empty"))
	}
	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
	}
	if rl := c.Server.RateLimit; rl.RequestsPerSecond < 0 {
		errs = append(errs, invalid("server.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	} else if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be positive when a rate is set, got %d", rl.Burst))
	}

	return errs
}

// StoreConfig converts to the store package's settings.
func (c *Config) StoreConfig() *store.StorageConfig {
	return &store.StorageConfig{
		Backend:  c.Storage.Backend,
		Path:     c.Storage.Path,
		DSN:      c.Storage.DSN,
		Distance: store.Distance(c.Storage.Distance),
	}
}

// EmbedConfig converts a model section to the embed registry's settings.
func (m ModelConfig) EmbedConfig() embed.Config {
	return embed.Config{
		Provider:       m.Provider,
		Model:          m.Model,
		Dimensions:     m.Dimensions,
		APIKey:         m.APIKey,
		Endpoint:       m.Endpoint,
		DocumentPrefix: m.DocumentPrefix,
		QueryPrefix:    m.QueryPrefix,
	}
}

// FetchConfig converts to the fetcher's settings.
func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{
		BaseURL:           c.Fetch.IIIFBaseURL,
		WarmupURL:         c.Fetch.WarmupURL,
		Size:              c.Fetch.Size,
		Timeout:           c.Fetch.Timeout,
		UserAgent:         c.Fetch.UserAgent,
		Referer:           c.Fetch.Referer,
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		Burst:             c.Fetch.Burst,
	}
}

// Normalizer builds the record normalizer for ingestion.
func (c *Config) Normalizer() artwork.Normalizer {
	policy, _ := artwork.ParseImagePolicy(c.Ingest.ImagePolicy)
	return artwork.Normalizer{ImagePolicy: policy, NoTextFallback: !c.Ingest.TextFallback}
}

// IngestModalities returns the configured modalities in canonical order.
func (c *Config) IngestModalities() []types.Modality {
	var out []types.Modality
	for _, m := range []types.Modality{types.ModalityText, types.ModalityImage} {
		if slices.Contains(c.Ingest.Modalities, string(m)) {
			out = append(out, m)
		}
	}
	return out
}

// EvalModes returns the configured evaluation modes.
func (c *Config) EvalModes() []types.SearchMode {
	out := make([]types.SearchMode, 0, len(c.Eval.Modes))
	for _, m := range c.Eval.Modes {
		out = append(out, types.SearchMode(m))
	}
	return out
}
