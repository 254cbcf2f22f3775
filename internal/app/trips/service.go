package trips

import (
	"context"
	"time"

	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/clock"
	"github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

// DefaultTimeout bounds each store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

type Service struct {
	trips   triprepo.Repository
	clock   clock.Clock
	timeout time.Duration

	newTripID func() domain.TripID
}

func NewService(tripsRepo triprepo.Repository, clk clock.Clock, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		trips:     tripsRepo,
		clock:     clk,
		timeout:   timeout,
		newTripID: domain.NewTripID,
	}
}

// SetNewTripIDForTest overrides trip ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewTripIDForTest(fn func() domain.TripID) {
	if fn != nil {
		s.newTripID = fn
	}
}

// CreateTrip creates a trip owned by the caller. The trip, the caller's creator membership and
// the trip_created entry are written together or not at all.
func (s *Service) CreateTrip(ctx context.Context, caller domain.Session, in CreateTripInput) (TripCreated, error) {
	if caller.UserID == "" {
		return TripCreated{}, apperr.NewUnauthorized("sign in to create a trip")
	}

	title := domain.NormalizeHumanName(in.Title)
	destination := domain.NormalizeHumanName(in.Destination)
	details := map[string]any{}
	if title == "" {
		details["title"] = "must be non-empty"
	}
	if destination == "" {
		details["destination"] = "must be non-empty"
	}
	if len(details) > 0 {
		return TripCreated{}, apperr.NewValidation("invalid trip", details)
	}

	now := s.clock.Now().UTC()
	id := s.newTripID()
	c := triprepo.Creation{
		Trip: triprepo.Trip{
			ID:          id,
			Title:       title,
			Destination: destination,
			Status:      domain.TripStatusActive,
			CreatedBy:   caller.UserID,
			CreatedAt:   now,
		},
		Creator: domain.Membership{
			TripID:      id,
			UserID:      caller.UserID,
			Role:        domain.RoleCreator,
			IntentLevel: domain.IntentSerious,
			JoinedAt:    now,
		},
		Activity: domain.ActivityEntry{
			TripID:    id,
			ActorID:   caller.UserID,
			Type:      domain.ActivityTripCreated,
			Payload:   map[string]string{"title": title},
			CreatedAt: now,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.trips.CreateWithCreator(ctx, c); err != nil {
		// Includes ErrAlreadyExists (UUID collision): the caller may retry with a fresh id.
		return TripCreated{}, apperr.Wrap(err, apperr.NewTripCreation)
	}

	return TripCreated{ID: id, Status: domain.TripStatusActive}, nil
}

// ListMyTrips returns the trips the caller belongs to, newest first, with the caller's role.
func (s *Service) ListMyTrips(ctx context.Context, caller domain.Session) ([]domain.TripSummary, error) {
	if caller.UserID == "" {
		return nil, apperr.NewUnauthorized("sign in to list trips")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ts, err := s.trips.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.NewNetwork)
	}
	out := make([]domain.TripSummary, 0, len(ts))
	for _, t := range ts {
		out = append(out, domain.TripSummary{Trip: ToDomainTrip(t.Trip), Role: t.Role})
	}
	return out, nil
}

// ToDomainTrip converts the persistence shape to the domain read model.
func ToDomainTrip(t triprepo.Trip) domain.Trip {
	return domain.Trip{
		ID:          t.ID,
		Title:       t.Title,
		Destination: t.Destination,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
	}
}
