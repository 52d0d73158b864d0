package jsondb

import "errors"

// Error kinds returned by the package. Errors are wrapped with more context;
// test them with errors.Is.
var (
	// ErrConfiguration is returned when the collection policy forbids the
	// operation, e.g. Add on a collection without generated keys.
	ErrConfiguration = errors.New("operation not permitted by collection configuration")
	// ErrValidation is returned for malformed input. It is always returned
	// before the file is touched.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIO is returned when the backing file cannot be opened, locked, parsed
	// or written.
	ErrIO = errors.New("i/o failure")
	// ErrPermission is returned when the backing file is not writable.
	ErrPermission = errors.New("permission denied")
)

var errReleased = errors.New("lock handle already released")
