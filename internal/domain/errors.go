package domain

import "errors"

var (
	// ErrProjectNotFound is returned when no active project exists for
	// an id, in either store.
	ErrProjectNotFound = errors.New("project not found")

	// ErrArchivedProjectNotFound is returned by restore when the
	// archive holds no document for the id.
	ErrArchivedProjectNotFound = errors.New("archived project not found")

	// ErrSchemaTooNew marks documents written by a newer binary.
	ErrSchemaTooNew = errors.New("unsupported project schema version")
)
