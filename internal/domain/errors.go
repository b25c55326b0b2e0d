package domain

import "errors"

var (
	// ErrInvalidQuery signals a missing or empty search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidID signals a malformed or empty identifier.
	ErrInvalidID = errors.New("invalid id")
	// ErrVideoNotFound signals a missing or unpublished video.
	ErrVideoNotFound = errors.New("video not found")
	// ErrIndexUnavailable signals that the search index is not configured or unreachable.
	ErrIndexUnavailable = errors.New("search index unavailable")
	// ErrVectorDimMismatch signals an embedding dimension mismatch against the corpus.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
