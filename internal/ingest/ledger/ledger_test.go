// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package ledger_test

import (
	"path/filepath"
	"testing"

	"github.com/artlens/artlens/internal/ingest/ledger"
	"github.com/artlens/artlens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) (*ledger.Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "ledger.db")
	l, err := ledger.Open(path)
	require.NoError(t, err)
	return l, path
}

func TestLedger_MarkAndDone(t *testing.T) {
	l, _ := openLedger(t)
	defer func() { _ = l.Close() }()

	done, err := l.Done(types.ModalityText, "1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, l.Mark(types.ModalityText, "1", "run-a"))

	done, err = l.Done(types.ModalityText, "1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = l.Done(types.ModalityImage, "1")
	require.NoError(t, err)
	assert.False(t, done, "modalities are tracked separately")

	m, err := l.Get(types.ModalityText, "1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "run-a", m.RunID)
	assert.False(t, m.SavedAt.IsZero())

	m, err = l.Get(types.ModalityImage, "1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLedger_PersistsAndResets(t *testing.T) {
	l, path := openLedger(t)
	require.NoError(t, l.Mark(types.ModalityImage, "7", "run"))
	require.NoError(t, l.Mark(types.ModalityImage, "8", "run"))
	require.NoError(t, l.Close())

	l, err := ledger.Open(path)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	n, err := l.Count(types.ModalityImage)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, l.Reset())
	n, err = l.Count(types.ModalityImage)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedger_UnknownModality(t *testing.T) {
	l, _ := openLedger(t)
	defer func() { _ = l.Close() }()

	_, err := l.Done("audio", "1")
	require.Error(t, err)
	require.Error(t, l.Mark("audio", "1", "run"))
}
