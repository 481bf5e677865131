package store

import "errors"

var (
	// ErrNotFound reports that a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a uniqueness violation detected before
	// mutation, such as a duplicate group name or email.
	ErrConflict = errors.New("already in use")
)
