// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := artlenserr.New(
		artlenserr.CodeConfigValidateInvalidValue,
		"invalid embedding configuration",
		artlenserr.FieldCollection("artwork_text_embeddings"),
		artlenserr.Field("provider", "openai"),
	)

	require.Error(t, err)
	assert.Equal(t, artlenserr.CodeConfigValidateInvalidValue, artlenserr.CodeOf(err))
	assert.True(t, artlenserr.HasCode(err, artlenserr.CodeConfigValidateInvalidValue))

	fields := artlenserr.FieldsOf(err)
	assert.Equal(t, "artwork_text_embeddings", fields["collection"])
	assert.Equal(t, "openai", fields["provider"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := artlenserr.Errorf(artlenserr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, artlenserr.CodeStoreDatabaseFailure, artlenserr.CodeOf(err))
	assert.Contains(t, err.Error(), "write failed")
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("connection reset")
	err := artlenserr.Wrap(root, artlenserr.CodeFetchImageFailure, "fetching image",
		artlenserr.FieldArtworkID("27992"),
		artlenserr.FieldURL("https://example.test/iiif/abc/full/843,/0/default.jpg"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, artlenserr.CodeFetchImageFailure, artlenserr.CodeOf(err))
	assert.Equal(t, "27992", artlenserr.FieldsOf(err)["artwork_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, artlenserr.Wrap(nil, artlenserr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, artlenserr.Wrapf(nil, artlenserr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, artlenserr.With(nil, artlenserr.FieldModality("text")))
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := artlenserr.New(artlenserr.CodeEmbedUpstreamFailure, "model call failed")
	withCtx := artlenserr.With(base, artlenserr.FieldModality("image"))

	assert.Equal(t, artlenserr.CodeEmbedUpstreamFailure, artlenserr.CodeOf(withCtx))
	assert.Equal(t, "image", artlenserr.FieldsOf(withCtx)["modality"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	err := artlenserr.With(stderrors.New("plain"), artlenserr.Field("k", "v"))
	assert.Equal(t, artlenserr.CodeServerInternalFailure, artlenserr.CodeOf(err))
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := artlenserr.New(artlenserr.CodeStoreDatabaseFailure, "db")
	outer := artlenserr.Wrap(inner, artlenserr.CodeStoreCollectionUpsertFailure, "upsert")
	// oops walks to the deepest coded error.
	assert.Equal(t, artlenserr.CodeStoreDatabaseFailure, artlenserr.CodeOf(outer))
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := artlenserr.New(artlenserr.CodeStoreInvalidInput, "bad", artlenserr.Field("", "dropped"), artlenserr.Field("kept", 1))
	fields := artlenserr.FieldsOf(err)
	assert.NotContains(t, fields, "")
	assert.Equal(t, 1, fields["kept"])
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   artlenserr.Code
		check  func(error) bool
		status int
	}{
		{"collection not found", artlenserr.CodeStoreCollectionNotFound, artlenserr.IsNotFound, http.StatusNotFound},
		{"unsupported mode", artlenserr.CodeQueryModeUnsupported, artlenserr.IsInvalidInput, http.StatusBadRequest},
		{"config invalid", artlenserr.CodeConfigValidateInvalidValue, artlenserr.IsInvalidInput, http.StatusBadRequest},
		{"config exists", artlenserr.CodeConfigAlreadyExists, artlenserr.IsConflict, http.StatusConflict},
		{"image forbidden", artlenserr.CodeFetchImageForbidden, artlenserr.IsForbidden, http.StatusForbidden},
		{"embed upstream", artlenserr.CodeEmbedUpstreamFailure, artlenserr.IsUpstreamFailure, http.StatusBadGateway},
		{"query embed upstream", artlenserr.CodeQueryEmbedFailure, artlenserr.IsUpstreamFailure, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := artlenserr.New(tt.code, tt.name)
			assert.True(t, tt.check(err))
			assert.Equal(t, tt.status, artlenserr.HTTPStatus(err))
		})
	}
}

func TestClassificationOnPlainError(t *testing.T) {
	err := stderrors.New("plain")
	assert.False(t, artlenserr.IsNotFound(err))
	assert.False(t, artlenserr.IsInvalidInput(err))
	assert.False(t, artlenserr.IsUpstreamFailure(err))
	assert.Equal(t, http.StatusInternalServerError, artlenserr.HTTPStatus(err))
	assert.Equal(t, artlenserr.Code(""), artlenserr.CodeOf(err))
	assert.Nil(t, artlenserr.FieldsOf(err))
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("a")
	b := stderrors.New("b")
	err := artlenserr.Join(a, b)
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
	assert.Equal(t, artlenserr.CodeServerInternalFailure, artlenserr.CodeOf(err))
}
