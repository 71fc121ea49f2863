// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artlens/artlens/internal/config"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

func TestRootCommand_Help(t *testing.T) {
	isolate(t)
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"ingest", "search", "eval", "show", "serve", "init", "doctor", "version", "secret"} {
		assert.Contains(t, out, sub)
	}
	assert.Contains(t, out, "--config")
	assert.Contains(t, out, "--log-format")
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "artlens dev")
}

func TestRoot_MissingConfigFile(t *testing.T) {
	isolate(t)
	_, err := run(t, "--config", "/nonexistent/artlens.yaml", "search", "x")
	require.Error(t, err)
	assert.True(t, artlenserr.HasCode(err, artlenserr.CodeConfigLoadReadFailure))
}

func TestRoot_BootstrapsDefaultConfig(t *testing.T) {
	home, _ := isolate(t)
	t.Chdir(t.TempDir())

	_, err := run(t, "version")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, ".config", "artlens", "artlens.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)
}

func TestRoot_ResolvesKeyringReferences(t *testing.T) {
	home, secretStore := isolate(t)
	require.NoError(t, secretStore.Set("artlens", "openai-api-key", "sk-test"))

	cfg := filepath.Join(home, "artlens.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`storage:
  path: `+filepath.Join(home, "artlens.db")+`
embedding:
  text:
    provider: openai
    api_key: keyring://artlens/openai-api-key
`), 0o600))

	c := &cli{v: viper.New()}
	root := newRootCmd(c)
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"--config", cfg, "version"})
	require.NoError(t, root.Execute())

	loaded, err := c.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", loaded.Embedding.Text.APIKey)
}

func TestRoot_InvalidLogFormat(t *testing.T) {
	isolate(t)
	_, err := run(t, "--log-format", "xml", "version")
	require.Error(t, err)
	assert.True(t, artlenserr.IsInvalidInput(err))
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := newLogHandler(&buf, "json", slog.LevelDebug)
	require.NoError(t, err)
	slog.New(h).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	h, err = newLogHandler(&buf, "text", slog.LevelInfo)
	require.NoError(t, err)
	slog.New(h).Debug("hidden")
	assert.Empty(t, buf.String())
}
