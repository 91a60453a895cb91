package reindex

import "errors"

var (
	// ErrRepositoryRequired is returned when no index repository is supplied.
	ErrRepositoryRequired = errors.New("reindex: index repository is required")

	// ErrBuilderRequired is returned when no index builder is supplied.
	ErrBuilderRequired = errors.New("reindex: index builder is required")
)
