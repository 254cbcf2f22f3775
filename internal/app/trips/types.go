package trips

import (
	"github.com/pactsquad/pact-api/internal/domain"
)

type CreateTripInput struct {
	Title       string
	Destination string
}

// TripCreated is the minimal response returned when a trip is created.
type TripCreated struct {
	ID     domain.TripID
	Status domain.TripStatus
}
