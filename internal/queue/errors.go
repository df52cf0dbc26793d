package queue

import "errors"

var (
	// ErrInvalidRequest is returned for malformed enqueue requests.
	ErrInvalidRequest = errors.New("invalid conversion request")
	// ErrNotClaimed is returned when a claim token no longer owns its item,
	// for example after stale reclamation.
	ErrNotClaimed = errors.New("item not held by claim")
	// ErrNotFound is returned for unknown item IDs.
	ErrNotFound = errors.New("conversion item not found")
)
