package blob

import "errors"

var (
	// ErrInvalidConfig indicates required S3 settings are missing.
	ErrInvalidConfig = errors.New("invalid object store configuration")

	// ErrObjectNotFound indicates the object key has no content behind it.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStoreUnavailable wraps any object store failure that is not a
	// missing object; the HTTP layer reports it as upstream_unavailable.
	ErrStoreUnavailable = errors.New("object store unavailable")

	// ErrInvalidName indicates a display name that is empty, too long or
	// contains path-control characters.
	ErrInvalidName = errors.New("invalid file name")
)
