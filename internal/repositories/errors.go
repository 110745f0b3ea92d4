package repositories

import "errors"

// Sentinel errors shared by all repository implementations. Services match
// on these with errors.Is and translate them into their own taxonomy.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("record already exists")
)
