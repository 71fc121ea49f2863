// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package fetch downloads artwork images from a IIIF image server.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// Defaults for the Art Institute of Chicago IIIF server.
const (
	DefaultBaseURL        = "https://www.artic.edu/iiif/2"
	DefaultWarmupURL      = "https://www.artic.edu/"
	DefaultSize           = 843
	DefaultTimeout        = 20 * time.Second
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	DefaultAccept         = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	DefaultReferer        = "https://www.artic.edu/"
	DefaultMaxBytes       = 20 << 20
)

// Source returns decoded-checked image bytes for an image reference.
type Source interface {
	Fetch(ctx context.Context, ref string) (*types.Image, error)
}

// Config controls a Fetcher. Zero fields take the package defaults.
type Config struct {
	BaseURL        string
	WarmupURL      string // empty disables the warm-up request
	Size           int
	Timeout        time.Duration
	UserAgent      string
	Referer        string
	Accept         string
	AcceptLanguage string
	MaxBytes       int64
	// RequestsPerSecond enables a token bucket before every request when
	// positive.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the configuration used against artic.edu.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		WarmupURL: DefaultWarmupURL,
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Referer == "" {
		c.Referer = DefaultReferer
	}
	if c.Accept == "" {
		c.Accept = DefaultAccept
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = DefaultAcceptLanguage
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Fetcher shares one HTTP client and cookie jar across every request of a
// run. It performs no retries; failures are returned to the caller.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	warm    sync.Once
}

var _ Source = (*Fetcher)(nil)

// New creates a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	cfg = cfg.withDefaults()
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeFetchRequestInvalid, "parsing iiif base url",
			artlenserr.FieldURL(cfg.BaseURL))
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeFetchRequestInvalid, "creating cookie jar")
	}

	f := &Fetcher{
		cfg:    cfg,
		client: &http.Client{Jar: jar, Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return f, nil
}

// URL builds the IIIF URL for ref: {base}/{ref}/full/{size},/0/default.jpg.
func (f *Fetcher) URL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.ContainsAny(ref, "/?#") {
		return "", artlenserr.New(artlenserr.CodeFetchRequestInvalid, "invalid image reference",
			artlenserr.Field("image_id", ref))
	}
	return fmt.Sprintf("%s/%s/full/%d,/0/default.jpg", f.cfg.BaseURL, url.PathEscape(ref), f.cfg.Size), nil
}

// Warm issues the one-time warm-up request that picks up cookies and edge
// state. Failures are logged and otherwise ignored.
func (f *Fetcher) Warm(ctx context.Context) {
	f.warm.Do(func() {
		if f.cfg.WarmupURL == "" {
			return
		}
		req, err := f.newRequest(ctx, f.cfg.WarmupURL)
		if err != nil {
			slog.Debug("image fetcher warm-up skipped", "error", err)
			return
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			slog.Debug("image fetcher warm-up failed", "url", f.cfg.WarmupURL, "error", err)
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		slog.Debug("image fetcher warmed up", "url", f.cfg.WarmupURL, "status", resp.StatusCode)
	})
}

// Fetch downloads and decode-checks the image for ref. 403 responses yield
// CodeFetchImageForbidden; other failures yield CodeFetchImageFailure or
// CodeFetchImageDecode.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*types.Image, error) {
	u, err := f.URL(ref)
	if err != nil {
		return nil, err
	}
	f.Warm(ctx)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, artlenserr.Wrap(err, artlenserr.CodeFetchImageFailure, "waiting for rate limiter",
				artlenserr.FieldURL(u))
		}
	}

	req, err := f.newRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", f.cfg.Accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeFetchImageFailure, "requesting image", artlenserr.FieldURL(u))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, artlenserr.New(artlenserr.CodeFetchImageForbidden, "image request forbidden",
			artlenserr.FieldURL(u), artlenserr.Field("status", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, artlenserr.New(artlenserr.CodeFetchImageFailure, "unexpected image response status",
			artlenserr.FieldURL(u), artlenserr.Field("status", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeFetchImageFailure, "reading image body", artlenserr.FieldURL(u))
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, artlenserr.New(artlenserr.CodeFetchImageFailure, "image exceeds size limit",
			artlenserr.FieldURL(u), artlenserr.Field("limit", f.cfg.MaxBytes))
	}

	return Decode(ref, data)
}

// Decode checks that data is a supported image and records its format
// and size.
func Decode(ref string, data []byte) (*types.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeFetchImageDecode, "decoding image",
			artlenserr.Field("image_id", ref), artlenserr.Field("bytes", len(data)))
	}
	return &types.Image{
		Ref:      ref,
		Data:     data,
		MIMEType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

func (f *Fetcher) newRequest(ctx context.Context, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeFetchRequestInvalid, "building request", artlenserr.FieldURL(u))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	req.Header.Set("Referer", f.cfg.Referer)
	return req, nil
}
