// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	doc, err := generateSpec()
	require.NoError(t, err)

	var parsed struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(doc, &parsed))
	assert.Contains(t, parsed.OpenAPI, "3.1")
	for _, p := range []string{"/health", "/api/v1/modes", "/api/v1/search", "/api/v1/images/{ref}"} {
		assert.Contains(t, parsed.Paths, p)
	}
}

func TestGenerateSpec_DescribesSearchParameters(t *testing.T) {
	doc, err := generateSpec()
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"name": "mode"`)
	assert.Contains(t, string(doc), "ArtworkHit")
}
