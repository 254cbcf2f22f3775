package triprepo

import (
	"context"
	"time"

	"github.com/pactsquad/pact-api/internal/domain"
)

// Trip is the persistence shape used by the trip repository.
// It is not an HTTP DTO.
type Trip struct {
	ID          domain.TripID
	Title       string
	Destination string
	Status      domain.TripStatus
	CreatedBy   domain.UserID
	CreatedAt   time.Time
}

// Creation is the unit written by CreateWithCreator: the trip, its first member and the
// trip_created audit entry.
type Creation struct {
	Trip     Trip
	Creator  domain.Membership
	Activity domain.ActivityEntry
}

// MemberTrip is a trip joined with the caller's membership role.
type MemberTrip struct {
	Trip Trip
	Role domain.Role
}

// Repository provides access to persisted trips.
//
// Result ordering expectations:
// - ListForUser returns trips newest first (CreatedAt descending, then ID) to keep behavior deterministic.
type Repository interface {
	// CreateWithCreator writes the trip, the creator membership and the activity entry as one
	// transaction. On any error none of the three rows exist.
	CreateWithCreator(ctx context.Context, c Creation) error

	GetByID(ctx context.Context, id domain.TripID) (Trip, error)

	// ListForUser returns the trips the user holds a membership in.
	ListForUser(ctx context.Context, userID domain.UserID) ([]MemberTrip, error)
}
