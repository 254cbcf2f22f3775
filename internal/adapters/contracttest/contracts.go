package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pactsquad/pact-api/internal/domain"
	activitylogport "github.com/pactsquad/pact-api/internal/ports/out/activitylog"
	idempotencyport "github.com/pactsquad/pact-api/internal/ports/out/idempotency"
	memberrepoport "github.com/pactsquad/pact-api/internal/ports/out/memberrepo"
	triprepoport "github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

type CleanupFunc = func()

// Ledger groups the repositories that must share one underlying store so composite writes
// are visible to all of them.
type Ledger struct {
	Trips    triprepoport.Repository
	Members  memberrepoport.Repository
	Activity activitylogport.Reader
}

type LedgerFactory func(t *testing.T) (Ledger, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		UserID:   domain.UserID("user-1"),
		Method:   "POST",
		Route:    "/trips",
		BodyHash: "hash-abc",
	}.Meta()
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	rec := idempotencyport.MetaRecord("hash-abc", time.Unix(123, 0).UTC())
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.Replayable() {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// The response record lives beside the meta record under the full fingerprint.
	full := fp
	full.BodyHash = "hash-def"
	resp := idempotencyport.Record{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"tripId":"t-1"}`), CreatedAt: rec.CreatedAt}
	if err := store.Put(ctx, full, resp); err != nil {
		t.Fatalf("Put response: %v", err)
	}
	got, ok, err = store.Get(ctx, full)
	if err != nil || !ok || !got.Replayable() || got.StatusCode != 201 || string(got.Body) != `{"tripId":"t-1"}` {
		t.Fatalf("unexpected response record: ok=%v err=%v rec=%+v", ok, err, got)
	}
	if got, _, _ := store.Get(ctx, fp); string(got.Body) != "hash-def" {
		t.Fatalf("meta record clobbered by response record: %q", string(got.Body))
	}

	// A different user with the same key must not see the record.
	other := fp
	other.UserID = domain.UserID("user-2")
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other user: ok=%v err=%v", ok, err)
	}
}

func newCreation(tripID domain.TripID, creator domain.UserID, title string, now time.Time) triprepoport.Creation {
	return triprepoport.Creation{
		Trip: triprepoport.Trip{
			ID:          tripID,
			Title:       title,
			Destination: "Anjuna Beach",
			Status:      domain.TripStatusActive,
			CreatedBy:   creator,
			CreatedAt:   now,
		},
		Creator: domain.Membership{
			TripID:      tripID,
			UserID:      creator,
			Role:        domain.RoleCreator,
			IntentLevel: domain.IntentSerious,
			JoinedAt:    now,
		},
		Activity: domain.ActivityEntry{
			TripID:    tripID,
			ActorID:   creator,
			Type:      domain.ActivityTripCreated,
			Payload:   map[string]string{"title": title},
			CreatedAt: now,
		},
	}
}

// RunLedger exercises trip creation, membership uniqueness and the activity log together.
func RunLedger(t *testing.T, newLedger LedgerFactory) {
	t.Helper()
	ctx := context.Background()

	l, cleanup := newLedger(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(2000, 0).UTC()
	u1 := domain.UserID("user-" + uuid.NewString())
	u2 := domain.UserID("user-" + uuid.NewString())
	tripID := domain.TripID(uuid.NewString())

	// Composite create.
	if err := l.Trips.CreateWithCreator(ctx, newCreation(tripID, u1, "Goa 2026", now)); err != nil {
		t.Fatalf("CreateWithCreator: %v", err)
	}
	got, err := l.Trips.GetByID(ctx, tripID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Goa 2026" || got.Destination != "Anjuna Beach" || got.Status != domain.TripStatusActive || got.CreatedBy != u1 {
		t.Fatalf("unexpected trip: %#v", got)
	}
	m, err := l.Members.Get(ctx, tripID, u1)
	if err != nil {
		t.Fatalf("Get creator membership: %v", err)
	}
	if m.Role != domain.RoleCreator || m.IntentLevel != domain.IntentSerious {
		t.Fatalf("unexpected creator membership: %#v", m)
	}
	entries, err := l.Activity.ListByTrip(ctx, tripID, 0)
	if err != nil {
		t.Fatalf("ListByTrip activity: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != domain.ActivityTripCreated || entries[0].Payload["title"] != "Goa 2026" {
		t.Fatalf("unexpected activity after create: %#v", entries)
	}

	// Duplicate trip id.
	if err := l.Trips.CreateWithCreator(ctx, newCreation(tripID, u1, "Again", now)); !errors.Is(err, triprepoport.ErrAlreadyExists) {
		t.Fatalf("duplicate create err=%v, want ErrAlreadyExists", err)
	}

	// Not found lookups.
	if _, err := l.Trips.GetByID(ctx, domain.TripID("nonexistent-id")); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("GetByID(nonexistent) err=%v, want ErrNotFound", err)
	}
	if _, err := l.Members.Get(ctx, tripID, u2); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("Get(u2) err=%v, want ErrNotFound", err)
	}

	// A rejected activity row rolls the whole creation back.
	rolledBack := domain.TripID(uuid.NewString())
	bad := newCreation(rolledBack, u1, "Broken", now)
	bad.Activity.Type = ""
	if err := l.Trips.CreateWithCreator(ctx, bad); err == nil {
		t.Fatalf("expected error for invalid activity row")
	}
	if _, err := l.Trips.GetByID(ctx, rolledBack); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("orphaned trip after failed create: err=%v", err)
	}
	if _, err := l.Members.Get(ctx, rolledBack, u1); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("orphaned membership after failed create: err=%v", err)
	}

	// Join + uniqueness.
	joinAt := now.Add(time.Minute)
	member := domain.Membership{TripID: tripID, UserID: u2, Role: domain.RoleMember, IntentLevel: domain.IntentSerious, JoinedAt: joinAt}
	entry := domain.ActivityEntry{TripID: tripID, ActorID: u2, Type: domain.ActivityJoinedTrip, Payload: map[string]string{"name": "u2@example.com"}, CreatedAt: joinAt}
	if err := l.Members.Join(ctx, member, entry); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := l.Members.Join(ctx, member, entry); !errors.Is(err, memberrepoport.ErrAlreadyMember) {
		t.Fatalf("second Join err=%v, want ErrAlreadyMember", err)
	}
	ms, err := l.Members.ListByTrip(ctx, tripID)
	if err != nil {
		t.Fatalf("ListByTrip members: %v", err)
	}
	if len(ms) != 2 || ms[0].UserID != u1 || ms[1].UserID != u2 {
		t.Fatalf("unexpected members: %#v", ms)
	}
	entries, err = l.Activity.ListByTrip(ctx, tripID, 10)
	if err != nil {
		t.Fatalf("ListByTrip activity: %v", err)
	}
	if len(entries) != 2 || entries[0].Type != domain.ActivityJoinedTrip || entries[0].ActorID != u2 {
		t.Fatalf("unexpected activity after join (want newest first): %#v", entries)
	}
	if entries, err := l.Activity.ListByTrip(ctx, tripID, 1); err != nil || len(entries) != 1 {
		t.Fatalf("ListByTrip limit=1: n=%d err=%v", len(entries), err)
	}

	// Joining a missing trip.
	ghost := domain.TripID(uuid.NewString())
	gm := member
	gm.TripID = ghost
	ge := entry
	ge.TripID = ghost
	if err := l.Members.Join(ctx, gm, ge); !errors.Is(err, memberrepoport.ErrTripNotFound) {
		t.Fatalf("Join(missing trip) err=%v, want ErrTripNotFound", err)
	}

	// A rejected activity row rolls the join back.
	u3 := domain.UserID("user-" + uuid.NewString())
	m3 := member
	m3.UserID = u3
	e3 := entry
	e3.ActorID = u3
	e3.Type = ""
	if err := l.Members.Join(ctx, m3, e3); err == nil {
		t.Fatalf("expected error for invalid join activity")
	}
	if _, err := l.Members.Get(ctx, tripID, u3); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("membership persisted despite failed activity: err=%v", err)
	}

	// Listing trips for a user, newest first.
	second := domain.TripID(uuid.NewString())
	if err := l.Trips.CreateWithCreator(ctx, newCreation(second, u2, "Second", now.Add(time.Hour))); err != nil {
		t.Fatalf("CreateWithCreator second: %v", err)
	}
	mine, err := l.Trips.ListForUser(ctx, u2)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(mine) != 2 || mine[0].Trip.ID != second || mine[0].Role != domain.RoleCreator || mine[1].Trip.ID != tripID || mine[1].Role != domain.RoleMember {
		t.Fatalf("unexpected ListForUser: %#v", mine)
	}
	if none, err := l.Trips.ListForUser(ctx, domain.UserID("nobody-"+uuid.NewString())); err != nil || len(none) != 0 {
		t.Fatalf("ListForUser(nobody): n=%d err=%v", len(none), err)
	}
}
