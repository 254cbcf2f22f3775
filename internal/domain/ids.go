package domain

import "github.com/google/uuid"

// UserID is the subject the identity provider issued for a person. Its format belongs to the provider.
type UserID string

// TripID is a UUID in canonical text form. Unparseable ids never name a stored trip.
type TripID string

func NewTripID() TripID { return TripID(uuid.NewString()) }

// Valid reports whether id is a well-formed UUID.
func (id TripID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}
