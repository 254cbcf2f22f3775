package memberrepo

import "errors"

var (
	// ErrNotFound indicates the requested membership does not exist.
	ErrNotFound = errors.New("membership not found")

	// ErrAlreadyMember indicates a membership already exists for the (trip, user) pair.
	ErrAlreadyMember = errors.New("membership already exists")

	// ErrTripNotFound indicates the membership references a trip that does not exist.
	ErrTripNotFound = errors.New("membership trip not found")

	// ErrInvalid indicates the store rejected a row (empty required column, failed check).
	ErrInvalid = errors.New("membership row invalid")
)
