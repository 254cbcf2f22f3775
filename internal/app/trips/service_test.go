package trips_test

import (
	"context"
	"errors"
	"testing"
	"time"

	memactivitylog "github.com/pactsquad/pact-api/internal/adapters/memory/activitylog"
	memclock "github.com/pactsquad/pact-api/internal/adapters/memory/clock"
	memmemberrepo "github.com/pactsquad/pact-api/internal/adapters/memory/memberrepo"
	"github.com/pactsquad/pact-api/internal/adapters/memory/tables"
	memtriprepo "github.com/pactsquad/pact-api/internal/adapters/memory/triprepo"
	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/app/trips"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/memberrepo"
	"github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

var u1 = domain.Session{UserID: "u1", Email: "u1@example.com"}

type failingTrips struct {
	triprepo.Repository
	err error
}

func (f failingTrips) CreateWithCreator(context.Context, triprepo.Creation) error { return f.err }

func TestService_CreateTrip_WritesTripCreatorAndActivity(t *testing.T) {
	t.Parallel()

	db := tables.New()
	clk := memclock.NewManualClock(time.Unix(1000, 0))
	svc := trips.NewService(memtriprepo.NewRepo(db), clk, 0)
	svc.SetNewTripIDForTest(func() domain.TripID { return "T1" })

	created, err := svc.CreateTrip(context.Background(), u1, trips.CreateTripInput{Title: "  Goa   2026 ", Destination: "Anjuna Beach"})
	if err != nil {
		t.Fatalf("CreateTrip() err=%v", err)
	}
	if created.ID != "T1" || created.Status != domain.TripStatusActive {
		t.Fatalf("created=%+v", created)
	}

	tp, err := memtriprepo.NewRepo(db).GetByID(context.Background(), "T1")
	if err != nil {
		t.Fatalf("GetByID() err=%v", err)
	}
	if tp.Title != "Goa 2026" || tp.Destination != "Anjuna Beach" || tp.CreatedBy != "u1" || !tp.CreatedAt.Equal(clk.Now()) {
		t.Fatalf("trip=%+v", tp)
	}

	ms, err := memmemberrepo.NewRepo(db).ListByTrip(context.Background(), "T1")
	if err != nil {
		t.Fatalf("ListByTrip() err=%v", err)
	}
	if len(ms) != 1 || ms[0].UserID != "u1" || ms[0].Role != domain.RoleCreator || ms[0].IntentLevel != domain.IntentSerious {
		t.Fatalf("members=%+v", ms)
	}

	entries, err := memactivitylog.NewReader(db).ListByTrip(context.Background(), "T1", 0)
	if err != nil {
		t.Fatalf("activity ListByTrip() err=%v", err)
	}
	if len(entries) != 1 || entries[0].Type != domain.ActivityTripCreated || entries[0].ActorID != "u1" || entries[0].Payload["title"] != "Goa 2026" {
		t.Fatalf("activity=%+v", entries)
	}
}

func TestService_CreateTrip_ValidationDetails(t *testing.T) {
	t.Parallel()

	svc := trips.NewService(memtriprepo.NewRepo(tables.New()), memclock.NewManualClock(time.Unix(0, 0)), 0)

	_, err := svc.CreateTrip(context.Background(), u1, trips.CreateTripInput{Title: "   ", Destination: ""})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.Validation || ae.Status != 422 {
		t.Fatalf("err=%v, want ValidationError", err)
	}
	if ae.Details["title"] == nil || ae.Details["destination"] == nil {
		t.Fatalf("details=%v, want title and destination", ae.Details)
	}
}

func TestService_CreateTrip_StoreFailureIsTripCreationErrorAndLeavesNoTrip(t *testing.T) {
	t.Parallel()

	db := tables.New()
	repo := memtriprepo.NewRepo(db)
	svc := trips.NewService(failingTrips{Repository: repo, err: errors.New("disk full")}, memclock.NewManualClock(time.Unix(0, 0)), 0)
	svc.SetNewTripIDForTest(func() domain.TripID { return "T9" })

	_, err := svc.CreateTrip(context.Background(), u1, trips.CreateTripInput{Title: "Goa", Destination: "Anjuna"})
	if !errors.Is(err, apperr.TripCreation) {
		t.Fatalf("err=%v, want TripCreationError", err)
	}
	if _, err := repo.GetByID(context.Background(), "T9"); !errors.Is(err, triprepo.ErrNotFound) {
		t.Fatalf("GetByID() err=%v, want ErrNotFound", err)
	}
	if _, err := memmemberrepo.NewRepo(db).Get(context.Background(), "T9", "u1"); !errors.Is(err, memberrepo.ErrNotFound) {
		t.Fatalf("membership err=%v, want ErrNotFound", err)
	}
}

func TestService_CreateTrip_TimeoutIsNetworkError(t *testing.T) {
	t.Parallel()

	svc := trips.NewService(failingTrips{err: context.DeadlineExceeded}, memclock.NewManualClock(time.Unix(0, 0)), time.Millisecond)

	_, err := svc.CreateTrip(context.Background(), u1, trips.CreateTripInput{Title: "Goa", Destination: "Anjuna"})
	if !errors.Is(err, apperr.Network) {
		t.Fatalf("err=%v, want NetworkError", err)
	}
}

func TestService_CreateTrip_RequiresSession(t *testing.T) {
	t.Parallel()

	svc := trips.NewService(memtriprepo.NewRepo(tables.New()), memclock.NewManualClock(time.Unix(0, 0)), 0)
	if _, err := svc.CreateTrip(context.Background(), domain.Session{}, trips.CreateTripInput{Title: "a", Destination: "b"}); !errors.Is(err, apperr.Unauthorized) {
		t.Fatalf("err=%v, want UnauthorizedError", err)
	}
}

func TestService_ListMyTrips_NewestFirstWithRole(t *testing.T) {
	t.Parallel()

	db := tables.New()
	clk := memclock.NewManualClock(time.Unix(1000, 0))
	svc := trips.NewService(memtriprepo.NewRepo(db), clk, 0)

	ids := []domain.TripID{"A", "B"}
	i := 0
	svc.SetNewTripIDForTest(func() domain.TripID { id := ids[i]; i++; return id })

	if _, err := svc.CreateTrip(context.Background(), u1, trips.CreateTripInput{Title: "First", Destination: "X"}); err != nil {
		t.Fatalf("CreateTrip() err=%v", err)
	}
	clk.Advance(time.Minute)
	if _, err := svc.CreateTrip(context.Background(), u1, trips.CreateTripInput{Title: "Second", Destination: "Y"}); err != nil {
		t.Fatalf("CreateTrip() err=%v", err)
	}

	got, err := svc.ListMyTrips(context.Background(), u1)
	if err != nil {
		t.Fatalf("ListMyTrips() err=%v", err)
	}
	if len(got) != 2 || got[0].ID != "B" || got[1].ID != "A" || got[0].Role != domain.RoleCreator {
		t.Fatalf("got=%+v", got)
	}

	other, err := svc.ListMyTrips(context.Background(), domain.Session{UserID: "u2"})
	if err != nil || len(other) != 0 {
		t.Fatalf("ListMyTrips(u2)=%v err=%v", other, err)
	}
}
