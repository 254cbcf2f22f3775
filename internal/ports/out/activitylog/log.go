package activitylog

import (
	"context"

	"github.com/pactsquad/pact-api/internal/domain"
)

// DefaultLimit bounds ListByTrip when the caller passes a non-positive limit.
const DefaultLimit = 50

// Reader reads the append-only activity log. Entries are written only as part of the composite
// writes in triprepo and memberrepo.
//
// Result ordering expectations:
// - ListByTrip returns entries newest first (CreatedAt descending, then ID descending).
type Reader interface {
	ListByTrip(ctx context.Context, tripID domain.TripID, limit int) ([]domain.ActivityEntry, error)
}
