// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package types

import (
	"testing"

	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchModeConstants_Valid(t *testing.T) {
	for _, m := range AllSearchModes {
		assert.True(t, m.Valid(), "mode constant %q must pass Valid()", m)
	}
}

func TestParseSearchMode(t *testing.T) {
	tests := []struct {
		in   string
		want SearchMode
	}{
		{"text", SearchModeText},
		{"TEXT", SearchModeText},
		{" vision ", SearchModeVision},
		{"Hybrid", SearchModeHybrid},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSearchMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSearchMode_RejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "images", "semantic"} {
		_, err := ParseSearchMode(in)
		require.Error(t, err, in)
		assert.True(t, artlenserr.HasCode(err, artlenserr.CodeQueryModeUnsupported))
		assert.True(t, artlenserr.IsInvalidInput(err))
	}
}

func TestModality_Valid(t *testing.T) {
	assert.True(t, ModalityText.Valid())
	assert.True(t, ModalityImage.Valid())
	assert.False(t, Modality("audio").Valid())
}
