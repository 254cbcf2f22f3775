package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pactsquad/pact-api/internal/domain"
)

// InsertActivity appends e inside tx. It is only called as part of a composite write.
func InsertActivity(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, e domain.ActivityEntry) error {
	payload := e.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO activity_log (trip_id, actor_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		tripID,
		string(e.ActorID),
		string(e.Type),
		payload,
		e.CreatedAt.UTC(),
	)
	return err
}
