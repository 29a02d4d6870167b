package kb

import "errors"

var (
	// ErrEmbeddingUnavailable marks an upstream embedding provider failure.
	// The HTTP layer maps it to 503.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch marks an embedding whose dimensionality does not
	// match the existing index. Reported, never silently coerced.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
