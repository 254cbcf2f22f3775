package domain

import "time"

type ActivityType string

const (
	ActivityTripCreated ActivityType = "trip_created"
	ActivityJoinedTrip  ActivityType = "joined_trip"
)

// ActivityEntry is an append-only audit record for a trip. Entries are never mutated.
type ActivityEntry struct {
	ID        int64
	TripID    TripID
	ActorID   UserID
	Type      ActivityType
	Payload   map[string]string
	CreatedAt time.Time
}
