// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package embed

import (
	"slices"
	"strings"
	"sync"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// Config selects and configures one embedding provider.
type Config struct {
	Provider       string
	Model          string
	Dimensions     int
	APIKey         string
	Endpoint       string
	DocumentPrefix string
	QueryPrefix    string
}

// TextFactory builds a text provider from configuration.
type TextFactory func(cfg Config) (TextProvider, error)

// ImageFactory builds a multimodal provider from configuration.
type ImageFactory func(cfg Config) (ImageProvider, error)

var (
	textFactories  = map[string]TextFactory{}
	imageFactories = map[string]ImageFactory{}
	factoriesMu    sync.RWMutex
)

// RegisterText registers a text provider. Provider packages call this from
// init().
func RegisterText(name string, f TextFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	textFactories[name] = f
}

// RegisterImage registers a multimodal provider. It is also usable as a
// text provider through its text tower.
func RegisterImage(name string, f ImageFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	imageFactories[name] = f
}

// NewText builds the text Model named by cfg.Provider.
func NewText(cfg Config) (*Model, error) {
	name := strings.ToLower(cfg.Provider)

	factoriesMu.RLock()
	tf, ok := textFactories[name]
	imf, imgOK := imageFactories[name]
	factoriesMu.RUnlock()

	var (
		p   TextProvider
		err error
	)
	switch {
	case ok:
		p, err = tf(cfg)
	case imgOK:
		p, err = imf(cfg)
	default:
		return nil, notRegistered(name, "text")
	}
	if err != nil {
		return nil, err
	}
	return NewTextModel(p, cfg.options())
}

// NewImage builds the multimodal Model named by cfg.Provider.
func NewImage(cfg Config) (*Model, error) {
	name := strings.ToLower(cfg.Provider)

	factoriesMu.RLock()
	f, ok := imageFactories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, notRegistered(name, "image")
	}

	p, err := f(cfg)
	if err != nil {
		return nil, err
	}
	return NewImageModel(p, cfg.options())
}

// Providers lists the registered provider names for a modality.
func Providers(images bool) []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	var names []string
	for name := range imageFactories {
		names = append(names, name)
	}
	if !images {
		for name := range textFactories {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

func (c Config) options() Options {
	return Options{Dimensions: c.Dimensions, DocumentPrefix: c.DocumentPrefix, QueryPrefix: c.QueryPrefix}
}

func notRegistered(name, modality string) error {
	return artlenserr.New(artlenserr.CodeEmbedProviderNotFound, "embedding provider not registered",
		artlenserr.FieldProvider(name), artlenserr.FieldModality(modality))
}
