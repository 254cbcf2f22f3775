package memberrepo

import (
	"context"
	"sort"

	"github.com/pactsquad/pact-api/internal/adapters/memory/tables"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/memberrepo"
)

// Repo is an in-memory implementation of memberrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	db *tables.DB
}

func NewRepo(db *tables.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, tripID domain.TripID, userID domain.UserID) (domain.Membership, error) {
	_ = ctx
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	m, ok := r.db.Members[tables.MemberKey{TripID: tripID, UserID: userID}]
	if !ok {
		return domain.Membership{}, memberrepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) Join(ctx context.Context, m domain.Membership, entry domain.ActivityEntry) error {
	_ = ctx
	if m.TripID == "" || m.UserID == "" || m.Role == "" {
		return memberrepo.ErrInvalid
	}
	if entry.TripID != m.TripID || entry.Type == "" {
		return memberrepo.ErrInvalid
	}

	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()

	if _, ok := r.db.Trips[m.TripID]; !ok {
		return memberrepo.ErrTripNotFound
	}
	key := tables.MemberKey{TripID: m.TripID, UserID: m.UserID}
	if _, ok := r.db.Members[key]; ok {
		return memberrepo.ErrAlreadyMember
	}
	r.db.Members[key] = m
	r.db.AppendActivityLocked(entry)
	return nil
}

func (r *Repo) ListByTrip(ctx context.Context, tripID domain.TripID) ([]domain.Membership, error) {
	_ = ctx
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()

	out := make([]domain.Membership, 0)
	for k, m := range r.db.Members {
		if k.TripID == tripID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return string(out[i].UserID) < string(out[j].UserID)
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}
