package index

import "errors"

var (
	// ErrInvalidTopK is returned when a query asks for zero or fewer results.
	ErrInvalidTopK = errors.New("top-k must be positive")

	// ErrDimensionMismatch is returned when vectors of different widths meet.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbedderRequired is returned when Build is called without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorCountMismatch is returned when an embedder or a restore supplies
	// a different number of vectors than chunks.
	ErrVectorCountMismatch = errors.New("vector count does not match chunk count")
)
