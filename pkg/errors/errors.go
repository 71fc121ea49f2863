// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreCollectionNotFound      Code = "store.collection.get.not_found"
	CodeStoreCollectionUpsertFailure Code = "store.collection.upsert.failure"
	CodeStoreCollectionQueryFailure  Code = "store.collection.query.failure"
	CodeStoreDimensionInvalid        Code = "store.collection.dimension.invalid_input"
	CodeStoreDatabaseFailure         Code = "store.database.failure"
	CodeStoreBackendUnsupported      Code = "store.backend.unsupported"
	CodeStoreInvalidInput            Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigAlreadyExists        Code = "config.write.conflict"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeEmbedRequestInvalid    Code = "embed.request.invalid"
	CodeEmbedResponseInvalid   Code = "embed.response.invalid"
	CodeEmbedUpstreamFailure   Code = "embed.upstream.failure"
	CodeEmbedProviderNotFound  Code = "embed.registry.not_found"
	CodeEmbedEmptyInput        Code = "embed.input.empty"
	CodeEmbedDimensionMismatch Code = "embed.response.dimension.invalid"

	CodeFetchImageFailure    Code = "fetch.image.failure"
	CodeFetchImageForbidden  Code = "fetch.image.forbidden"
	CodeFetchImageDecode     Code = "fetch.image.decode.failure"
	CodeFetchRequestInvalid  Code = "fetch.request.invalid"
	CodeFetchUpstreamFailure Code = "fetch.upstream.failure"

	CodeIngestRecordParseFailure Code = "ingest.record.parse_failure"
	CodeIngestRecordMissingID    Code = "ingest.record.id.invalid"
	CodeIngestTextEmptyInput     Code = "ingest.text.empty_input"
	CodeIngestSourceReadFailure  Code = "ingest.source.read.failure"
	CodeIngestLedgerFailure      Code = "ingest.ledger.failure"

	CodeQueryModeUnsupported Code = "query.mode.unsupported.invalid_input"
	CodeQueryInvalidInput    Code = "query.request.invalid_input"
	CodeQueryEmbedFailure    Code = "query.embed.upstream.failure"
	CodeQuerySearchFailure   Code = "query.search.failure"

	CodeEvalInvalidInput  Code = "eval.request.invalid_input"
	CodeEvalSampleFailure Code = "eval.sample.failure"
	CodeEvalQueryFailure  Code = "eval.query.failure"
	CodeEvalReportFailure Code = "eval.report.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldArtworkID(value string) Attr {
	return Field("artwork_id", value)
}

func FieldCollection(value string) Attr {
	return Field("collection", value)
}

func FieldModality(value string) Attr {
	return Field("modality", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldURL(value string) Attr {
	return Field("url", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsForbidden(err error) bool {
	r := reason(CodeOf(err))
	return r == "forbidden" || r == "denied"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsForbidden(err):
		return http.StatusForbidden
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
