package memberrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/pactsquad/pact-api/internal/adapters/postgres"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/memberrepo"
)

// Repo is a Postgres implementation of memberrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Get(ctx context.Context, tripID domain.TripID, userID domain.UserID) (domain.Membership, error) {
	if r.pool == nil {
		return domain.Membership{}, errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(tripID))
	if err != nil {
		return domain.Membership{}, memberrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT trip_id, user_id, role, intent_level, joined_at
		FROM trip_members
		WHERE trip_id = $1 AND user_id = $2
	`, tripUUID, string(userID))
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, memberrepo.ErrNotFound
		}
		return domain.Membership{}, err
	}
	return m, nil
}

func (r *Repo) Join(ctx context.Context, m domain.Membership, entry domain.ActivityEntry) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(m.TripID))
	if err != nil {
		return memberrepo.ErrTripNotFound
	}
	if entry.TripID != m.TripID {
		return fmt.Errorf("%w: activity entry for another trip", memberrepo.ErrInvalid)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			INSERT INTO trip_members (trip_id, user_id, role, intent_level, joined_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT ON CONSTRAINT trip_members_trip_user_unique DO NOTHING
		`,
			tripUUID,
			string(m.UserID),
			string(m.Role),
			string(m.IntentLevel),
			m.JoinedAt.UTC(),
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return memberrepo.ErrAlreadyMember
		}
		return postgres.InsertActivity(ctx, tx, tripUUID, entry)
	})
	if err != nil {
		switch {
		case errors.Is(err, memberrepo.ErrAlreadyMember):
			return err
		case postgres.HasCode(err, postgres.ForeignKeyViolationCode):
			return memberrepo.ErrTripNotFound
		case postgres.HasCode(err, postgres.CheckViolationCode):
			return fmt.Errorf("%w: %v", memberrepo.ErrInvalid, err)
		}
		return err
	}
	return nil
}

func (r *Repo) ListByTrip(ctx context.Context, tripID domain.TripID) ([]domain.Membership, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(tripID))
	if err != nil {
		return []domain.Membership{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT trip_id, user_id, role, intent_level, joined_at
		FROM trip_members
		WHERE trip_id = $1
		ORDER BY joined_at ASC, user_id ASC
	`, tripUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var (
		tripID              uuid.UUID
		userID, role, level string
		m                   domain.Membership
	)
	if err := row.Scan(&tripID, &userID, &role, &level, &m.JoinedAt); err != nil {
		return domain.Membership{}, err
	}
	m.TripID = domain.TripID(tripID.String())
	m.UserID = domain.UserID(userID)
	m.Role = domain.Role(role)
	m.IntentLevel = domain.IntentLevel(level)
	m.JoinedAt = m.JoinedAt.UTC()
	return m, nil
}
