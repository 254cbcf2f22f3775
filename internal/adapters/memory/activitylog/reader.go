package activitylog

import (
	"context"
	"sort"

	"github.com/pactsquad/pact-api/internal/adapters/memory/tables"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/activitylog"
)

// Reader is an in-memory implementation of activitylog.Reader.
type Reader struct {
	db *tables.DB
}

func NewReader(db *tables.DB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) ListByTrip(ctx context.Context, tripID domain.TripID, limit int) ([]domain.ActivityEntry, error) {
	_ = ctx
	if limit <= 0 {
		limit = activitylog.DefaultLimit
	}
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()

	out := make([]domain.ActivityEntry, 0)
	for _, e := range r.db.Activity {
		if e.TripID != tripID {
			continue
		}
		e.Payload = tables.ClonePayload(e.Payload)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
