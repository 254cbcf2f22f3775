package triprepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/pactsquad/pact-api/internal/adapters/postgres"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

// Repo is a Postgres implementation of triprepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) CreateWithCreator(ctx context.Context, c triprepo.Creation) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(c.Trip.ID))
	if err != nil {
		return fmt.Errorf("%w: trip id: %v", triprepo.ErrInvalid, err)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO trips (id, title, destination, status, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			tripUUID,
			c.Trip.Title,
			c.Trip.Destination,
			string(c.Trip.Status),
			string(c.Trip.CreatedBy),
			c.Trip.CreatedAt.UTC(),
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO trip_members (trip_id, user_id, role, intent_level, joined_at)
			VALUES ($1, $2, $3, $4, $5)
		`,
			tripUUID,
			string(c.Creator.UserID),
			string(c.Creator.Role),
			string(c.Creator.IntentLevel),
			c.Creator.JoinedAt.UTC(),
		); err != nil {
			return err
		}

		return postgres.InsertActivity(ctx, tx, tripUUID, c.Activity)
	})
	if err != nil {
		switch {
		case postgres.HasCode(err, postgres.UniqueViolationCode):
			return triprepo.ErrAlreadyExists
		case postgres.HasCode(err, postgres.CheckViolationCode):
			return fmt.Errorf("%w: %v", triprepo.ErrInvalid, err)
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	if r.pool == nil {
		return triprepo.Trip{}, errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, destination, status, created_by, created_at
		FROM trips
		WHERE id = $1
	`, tripUUID)
	t, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return triprepo.Trip{}, triprepo.ErrNotFound
		}
		return triprepo.Trip{}, err
	}
	return t, nil
}

func (r *Repo) ListForUser(ctx context.Context, userID domain.UserID) ([]triprepo.MemberTrip, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.title, t.destination, t.status, t.created_by, t.created_at, m.role
		FROM trip_members m
		JOIN trips t ON t.id = m.trip_id
		WHERE m.user_id = $1
		ORDER BY t.created_at DESC, t.id ASC
	`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]triprepo.MemberTrip, 0)
	for rows.Next() {
		var (
			mt   triprepo.MemberTrip
			role string
		)
		mt.Trip, err = scanTrip(rows, &role)
		if err != nil {
			return nil, err
		}
		mt.Role = domain.Role(role)
		out = append(out, mt)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row, extra ...any) (triprepo.Trip, error) {
	var (
		id        uuid.UUID
		t         triprepo.Trip
		status    string
		createdBy string
	)
	dest := append([]any{&id, &t.Title, &t.Destination, &status, &createdBy, &t.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return triprepo.Trip{}, err
	}
	t.ID = domain.TripID(id.String())
	t.Status = domain.TripStatus(status)
	t.CreatedBy = domain.UserID(createdBy)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
