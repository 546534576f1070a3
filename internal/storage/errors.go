package storage

import "errors"

var (
	// ErrUserNotFound indicates the user row does not exist yet.
	ErrUserNotFound = errors.New("user not found")

	// ErrFileNotFound covers both a missing record and a record owned by
	// someone else; callers must not be able to tell the two apart.
	ErrFileNotFound = errors.New("file not found")

	// ErrObjectKeyExists indicates a file record already references the
	// object key within the owner's namespace.
	ErrObjectKeyExists = errors.New("object key already bound to a file record")

	// ErrInvalidFileState indicates a lifecycle transition whose
	// precondition no longer holds (e.g. trashing an already trashed file).
	ErrInvalidFileState = errors.New("file is not in the required state")

	// ErrNegativeUsage guards the ledger against a release that would take
	// a user's counted bytes below zero.
	ErrNegativeUsage = errors.New("usage adjustment would make storage usage negative")
)
