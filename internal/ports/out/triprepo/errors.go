package triprepo

import "errors"

// Sentinel errors every Repository implementation returns, possibly wrapped.
var (
	ErrNotFound = errors.New("trip not found")

	// ErrAlreadyExists means the trip id is taken. No membership or activity row was written.
	ErrAlreadyExists = errors.New("trip already exists")

	// ErrInvalid means a row failed a store constraint (blank title, malformed id, bad enum).
	ErrInvalid = errors.New("trip row invalid")
)
