// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package notes

import "errors"

// Sentinel error kinds for note store operations. Every error returned by
// Store wraps exactly one of them; check with errors.Is or KindOf.
var (
	// ErrValidation indicates the caller supplied unusable input, such as
	// an empty note or query.
	ErrValidation = errors.New("validation error")

	// ErrEmbedding indicates the embedding provider failed, timed out or
	// returned an unusable vector.
	ErrEmbedding = errors.New("embedding error")

	// ErrStorage indicates the vector index failed a read or write.
	ErrStorage = errors.New("storage error")

	// ErrInfrastructure indicates the index collection could not be
	// provisioned.
	ErrInfrastructure = errors.New("infrastructure error")
)

// Kind classifies a store error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindEmbedding
	KindStorage
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEmbedding:
		return "embedding"
	case KindStorage:
		return "storage"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Retryable reports whether an operation that failed with this kind may
// succeed if repeated unchanged.
func (k Kind) Retryable() bool {
	return k == KindEmbedding || k == KindStorage
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrEmbedding):
		return KindEmbedding
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrInfrastructure):
		return KindInfrastructure
	default:
		return KindUnknown
	}
}
