// Package tables holds the in-memory relational state shared by the memory repositories.
//
// All tables sit behind one mutex so composite writes (trip + creator + activity,
// membership + activity) are atomic.
package tables

import (
	"sync"

	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

type MemberKey struct {
	TripID domain.TripID
	UserID domain.UserID
}

// DB is an in-memory database. It is safe for concurrent use.
type DB struct {
	Mu sync.RWMutex

	Trips    map[domain.TripID]triprepo.Trip
	Members  map[MemberKey]domain.Membership
	Activity []domain.ActivityEntry

	nextActivityID int64
}

func New() *DB {
	return &DB{
		Trips:   make(map[domain.TripID]triprepo.Trip),
		Members: make(map[MemberKey]domain.Membership),
	}
}

// AppendActivityLocked appends e and returns it with its assigned ID.
// Callers must hold Mu for writing.
func (db *DB) AppendActivityLocked(e domain.ActivityEntry) domain.ActivityEntry {
	db.nextActivityID++
	e.ID = db.nextActivityID
	e.Payload = ClonePayload(e.Payload)
	db.Activity = append(db.Activity, e)
	return e
}

func ClonePayload(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
