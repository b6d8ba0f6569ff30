package store

import "errors"

var (
	// ErrEmptyTable indicates a cursor operation without a table name.
	ErrEmptyTable = errors.New("table name cannot be empty")

	// ErrEmptyEntity indicates an ID map operation without an entity name.
	ErrEmptyEntity = errors.New("entity name cannot be empty")

	// ErrInvalidNewID indicates a new ID that cannot be stored in the ID map.
	ErrInvalidNewID = errors.New("new id must be an integer or a non-empty string")
)
