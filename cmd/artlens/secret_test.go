// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

func runWithStdin(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSecretSet(t *testing.T) {
	_, store := isolate(t)

	out, err := runWithStdin(t, "sk-live-123\n", "secret", "set", "openai-api-key")
	require.NoError(t, err)
	assert.Contains(t, out, "keyring://artlens/openai-api-key")

	got, err := store.Get("artlens", "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-123", got)
}

func TestSecretSet_WithoutTrailingNewline(t *testing.T) {
	_, store := isolate(t)

	_, err := runWithStdin(t, "  gm-key  ", "secret", "set", "google-api-key")
	require.NoError(t, err)
	got, err := store.Get("artlens", "google-api-key")
	require.NoError(t, err)
	assert.Equal(t, "gm-key", got)
}

func TestSecretSet_Empty(t *testing.T) {
	isolate(t)
	_, err := runWithStdin(t, "\n", "secret", "set", "x")
	require.Error(t, err)
	assert.True(t, artlenserr.HasCode(err, artlenserr.CodeSecretInvalidInput))
}

func TestSecretDelete(t *testing.T) {
	_, store := isolate(t)
	require.NoError(t, store.Set("artlens", "old-key", "v"))

	out, err := run(t, "secret", "delete", "old-key")
	require.NoError(t, err)
	assert.Equal(t, "Deleted secret: old-key\n", out)

	_, err = store.Get("artlens", "old-key")
	assert.True(t, artlenserr.IsNotFound(err))

	_, err = run(t, "secret", "delete", "old-key")
	require.Error(t, err)
	assert.True(t, artlenserr.HasCode(err, artlenserr.CodeSecretNotFound))
}
