package storage

import "errors"

var (
	// ErrNotFound is returned when the requested favorite or alert does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")
)
