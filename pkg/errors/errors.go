// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error. Codes are dotted
// paths whose last segment is the reason (not_found, invalid_input, timeout,
// failure, ...); the classification helpers below key off that segment.
type Code string

const (
	CodeNoteAddInvalid    Code = "notes.add.invalid_input"
	CodeNoteSearchInvalid Code = "notes.search.invalid_input"
	CodeNoteConfigInvalid Code = "notes.config.invalid"

	CodeEmbeddingRequestInvalid  Code = "embedding.request.invalid"
	CodeEmbeddingResponseInvalid Code = "embedding.response.malformed"
	CodeEmbeddingUpstreamFailure Code = "embedding.upstream.failure"
	CodeEmbeddingRequestTimeout  Code = "embedding.request.timeout"
	CodeEmbeddingRateExceeded    Code = "embedding.rate_limit.exceeded"

	CodeIndexRequestInvalid         Code = "index.request.invalid"
	CodeIndexUpsertFailure          Code = "index.upsert.failure"
	CodeIndexQueryFailure           Code = "index.query.failure"
	CodeIndexStatsFailure           Code = "index.stats.failure"
	CodeIndexSequenceFailure        Code = "index.sequence.failure"
	CodeIndexRequestTimeout         Code = "index.request.timeout"
	CodeIndexOpenFailure            Code = "index.open.failure"
	CodeIndexBackendUnsupported     Code = "index.backend.unsupported"
	CodeIndexCollectionNotFound     Code = "index.collection.not_found"
	CodeIndexCollectionConflict     Code = "index.collection.conflict"
	CodeIndexCollectionInvalid      Code = "index.collection.invalid"
	CodeIndexCollectionBootstrapErr Code = "index.collection.bootstrap.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretListFailure    Code = "secret.list.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeChannelTokenInvalid     Code = "channel.token.invalid"
	CodeChannelTokenCheckFailed Code = "channel.token.check.failure"
	CodeChannelUpstreamFailure  Code = "channel.upstream.failure"
	CodeChannelResponseInvalid  Code = "channel.response.malformed"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldNoteID(value string) Attr {
	return Field("note_id", value)
}

func FieldCollection(value string) Attr {
	return Field("collection", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
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

// CodeOf returns the innermost code in the chain, or "" for plain errors.
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

// Domain returns the first segment of the error's code ("notes",
// "embedding", "index", ...), or "" for uncoded errors.
func Domain(err error) string {
	code := string(CodeOf(err))
	if idx := strings.Index(code, "."); idx > 0 {
		return code[:idx]
	}
	return code
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

func IsExceeded(err error) bool {
	return reason(CodeOf(err)) == "exceeded"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsUpstreamFailure reports failures of a remote dependency, including
// responses it returned in an unusable shape.
func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	if reason(code) == "malformed" {
		return true
	}
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
	case IsExceeded(err):
		return http.StatusTooManyRequests
	case IsTimeout(err):
		return http.StatusGatewayTimeout
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
