// Package access decides what a signed-in user sees when they open a trip link, and lets them
// join. A trip is shown in one of three states: Visitor (not a member), Member, or NotFound.
package access

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/app/trips"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/activitylog"
	"github.com/pactsquad/pact-api/internal/ports/out/clock"
	"github.com/pactsquad/pact-api/internal/ports/out/memberrepo"
	"github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

type State string

const (
	// StateLoading is the state before the trip lookup completes. It is never returned.
	StateLoading  State = "loading"
	StateVisitor  State = "visitor"
	StateMember   State = "member"
	StateNotFound State = "not_found"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultActivityLimit = 20
)

// Access is the resolved view of one trip for one user.
type Access struct {
	State State
	Trip  domain.Trip

	// Set only in StateMember.
	Membership *domain.Membership
	Members    []domain.Membership
	Activity   []domain.ActivityEntry
}

type Controller struct {
	trips    triprepo.Repository
	members  memberrepo.Repository
	activity activitylog.Reader
	clock    clock.Clock

	timeout       time.Duration
	activityLimit int

	joins singleflight.Group
}

func NewController(tripsRepo triprepo.Repository, membersRepo memberrepo.Repository, activity activitylog.Reader, clk clock.Clock, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		trips:         tripsRepo,
		members:       membersRepo,
		activity:      activity,
		clock:         clk,
		timeout:       timeout,
		activityLimit: DefaultActivityLimit,
	}
}

// Resolve looks up the trip and the caller's membership. It writes nothing.
func (c *Controller) Resolve(ctx context.Context, tripID domain.TripID, caller domain.Session) (Access, error) {
	if caller.UserID == "" {
		return Access{State: StateLoading}, apperr.NewUnauthorized("sign in to view this trip")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.resolve(ctx, tripID, caller.UserID)
}

func (c *Controller) resolve(ctx context.Context, tripID domain.TripID, userID domain.UserID) (Access, error) {
	t, err := c.loadTrip(ctx, tripID)
	if err != nil {
		return Access{State: StateNotFound}, err
	}

	m, err := c.members.Get(ctx, tripID, userID)
	switch {
	case errors.Is(err, memberrepo.ErrNotFound):
		return Access{State: StateVisitor, Trip: t}, nil
	case err != nil:
		return Access{State: StateLoading}, apperr.Wrap(err, apperr.NewNetwork)
	}
	return c.memberView(ctx, t, m)
}

// Join makes the caller a member of the trip. Joining a trip the caller already belongs to is a
// no-op that returns the member view.
func (c *Controller) Join(ctx context.Context, tripID domain.TripID, caller domain.Session) (Access, error) {
	if caller.UserID == "" {
		return Access{State: StateLoading}, apperr.NewUnauthorized("sign in to join this trip")
	}

	// The write outlives a disconnecting client but stays bounded by the timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	v, err, _ := c.joins.Do(string(tripID)+"|"+string(caller.UserID), func() (any, error) {
		return c.join(ctx, tripID, caller)
	})
	a, _ := v.(Access)
	return a, err
}

func (c *Controller) join(ctx context.Context, tripID domain.TripID, caller domain.Session) (Access, error) {
	t, err := c.loadTrip(ctx, tripID)
	if err != nil {
		return Access{State: StateNotFound}, err
	}

	existing, err := c.members.Get(ctx, tripID, caller.UserID)
	if err == nil {
		return c.memberView(ctx, t, existing)
	}
	if !errors.Is(err, memberrepo.ErrNotFound) {
		return Access{State: StateVisitor, Trip: t}, apperr.Wrap(err, apperr.NewJoin)
	}

	now := c.clock.Now().UTC()
	m := domain.Membership{
		TripID:      tripID,
		UserID:      caller.UserID,
		Role:        domain.RoleMember,
		IntentLevel: domain.IntentSerious,
		JoinedAt:    now,
	}
	entry := domain.ActivityEntry{
		TripID:    tripID,
		ActorID:   caller.UserID,
		Type:      domain.ActivityJoinedTrip,
		Payload:   map[string]string{"name": caller.DisplayName()},
		CreatedAt: now,
	}

	err = c.members.Join(ctx, m, entry)
	switch {
	case err == nil, errors.Is(err, memberrepo.ErrAlreadyMember):
		// A concurrent join won the race; the existing membership stands.
	case errors.Is(err, memberrepo.ErrTripNotFound):
		return Access{State: StateNotFound}, apperr.NewTripNotFound()
	default:
		return Access{State: StateVisitor, Trip: t}, apperr.Wrap(err, apperr.NewJoin)
	}

	stored, err := c.members.Get(ctx, tripID, caller.UserID)
	if err != nil {
		return Access{State: StateVisitor, Trip: t}, apperr.Wrap(err, apperr.NewJoin)
	}
	return c.memberView(ctx, t, stored)
}

func (c *Controller) loadTrip(ctx context.Context, tripID domain.TripID) (domain.Trip, error) {
	if tripID == "" {
		return domain.Trip{}, apperr.NewTripNotFound()
	}
	t, err := c.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, triprepo.ErrNotFound) {
			return domain.Trip{}, apperr.NewTripNotFound()
		}
		return domain.Trip{}, apperr.Wrap(err, apperr.NewNetwork)
	}
	return trips.ToDomainTrip(t), nil
}

func (c *Controller) memberView(ctx context.Context, t domain.Trip, m domain.Membership) (Access, error) {
	roster, err := c.members.ListByTrip(ctx, t.ID)
	if err != nil {
		return Access{State: StateLoading}, apperr.Wrap(err, apperr.NewNetwork)
	}
	entries, err := c.activity.ListByTrip(ctx, t.ID, c.activityLimit)
	if err != nil {
		return Access{State: StateLoading}, apperr.Wrap(err, apperr.NewNetwork)
	}
	return Access{
		State:      StateMember,
		Trip:       t,
		Membership: &m,
		Members:    roster,
		Activity:   entries,
	}, nil
}
