package domain

import "time"

type Role string

const (
	RoleCreator Role = "creator"
	RoleMember  Role = "member"
)

type IntentLevel string

const IntentSerious IntentLevel = "serious"

// Membership links a user to a trip. There is at most one per (TripID, UserID).
type Membership struct {
	TripID      TripID
	UserID      UserID
	Role        Role
	IntentLevel IntentLevel
	JoinedAt    time.Time
}
