package memberrepo

import (
	"context"

	"github.com/pactsquad/pact-api/internal/domain"
)

// Repository is the membership ledger: which users belong to which trips.
//
// Result ordering expectations:
// - ListByTrip returns memberships ordered by JoinedAt ascending, then UserID.
type Repository interface {
	// Get returns the membership for (trip, user). If it does not exist, ErrNotFound is returned.
	Get(ctx context.Context, tripID domain.TripID, userID domain.UserID) (domain.Membership, error)

	// Join inserts the membership and appends the activity entry in one transaction.
	//
	// If a membership for (trip, user) already exists nothing is written and ErrAlreadyMember is
	// returned. If the trip does not exist, ErrTripNotFound is returned.
	Join(ctx context.Context, m domain.Membership, entry domain.ActivityEntry) error

	ListByTrip(ctx context.Context, tripID domain.TripID) ([]domain.Membership, error)
}
