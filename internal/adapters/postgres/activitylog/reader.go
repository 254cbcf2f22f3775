package activitylog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/activitylog"
)

// Reader is a Postgres implementation of activitylog.Reader.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

func (r *Reader) ListByTrip(ctx context.Context, tripID domain.TripID, limit int) ([]domain.ActivityEntry, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	if limit <= 0 {
		limit = activitylog.DefaultLimit
	}
	tripUUID, err := uuid.Parse(string(tripID))
	if err != nil {
		return []domain.ActivityEntry{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, trip_id, actor_id, type, payload, created_at
		FROM activity_log
		WHERE trip_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, tripUUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ActivityEntry, 0)
	for rows.Next() {
		var (
			e       domain.ActivityEntry
			tid     uuid.UUID
			actor   string
			typ     string
			payload map[string]string
		)
		if err := rows.Scan(&e.ID, &tid, &actor, &typ, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TripID = domain.TripID(tid.String())
		e.ActorID = domain.UserID(actor)
		e.Type = domain.ActivityType(typ)
		e.Payload = payload
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
