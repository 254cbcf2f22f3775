package domain

import "time"

// TripStatus is an opaque lifecycle label. Trips are created "active" and nothing in this
// service transitions them.
type TripStatus string

const TripStatusActive TripStatus = "active"

type Trip struct {
	ID          TripID
	Title       string
	Destination string
	Status      TripStatus
	CreatedBy   UserID
	CreatedAt   time.Time
}

// TripSummary is the dashboard read model: a trip plus the caller's role in it.
type TripSummary struct {
	Trip
	Role Role
}
