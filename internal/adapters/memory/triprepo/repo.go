package triprepo

import (
	"context"
	"sort"

	"github.com/pactsquad/pact-api/internal/adapters/memory/tables"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

// Repo is an in-memory implementation of triprepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	db *tables.DB
}

func NewRepo(db *tables.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateWithCreator(ctx context.Context, c triprepo.Creation) error {
	_ = ctx
	// Validate everything before the first write so a rejected creation leaves no rows.
	if c.Trip.ID == "" || c.Trip.Title == "" || c.Trip.Destination == "" || c.Trip.CreatedBy == "" {
		return triprepo.ErrInvalid
	}
	if c.Creator.TripID != c.Trip.ID || c.Creator.UserID == "" {
		return triprepo.ErrInvalid
	}
	if c.Activity.TripID != c.Trip.ID || c.Activity.Type == "" {
		return triprepo.ErrInvalid
	}

	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()

	if _, ok := r.db.Trips[c.Trip.ID]; ok {
		return triprepo.ErrAlreadyExists
	}
	r.db.Trips[c.Trip.ID] = c.Trip
	r.db.Members[tables.MemberKey{TripID: c.Trip.ID, UserID: c.Creator.UserID}] = c.Creator
	r.db.AppendActivityLocked(c.Activity)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	_ = ctx
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	t, ok := r.db.Trips[id]
	if !ok {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	return t, nil
}

func (r *Repo) ListForUser(ctx context.Context, userID domain.UserID) ([]triprepo.MemberTrip, error) {
	_ = ctx
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()

	out := make([]triprepo.MemberTrip, 0)
	for k, m := range r.db.Members {
		if k.UserID != userID {
			continue
		}
		t, ok := r.db.Trips[k.TripID]
		if !ok {
			continue
		}
		out = append(out, triprepo.MemberTrip{Trip: t, Role: m.Role})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Trip, out[j].Trip
		if ti.CreatedAt.Equal(tj.CreatedAt) {
			return string(ti.ID) < string(tj.ID)
		}
		return ti.CreatedAt.After(tj.CreatedAt)
	})
	return out, nil
}
