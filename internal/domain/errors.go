package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the caller supplied invalid data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates the operation conflicts with the record's state.
	ErrConflict = errors.New("conflict")
)
