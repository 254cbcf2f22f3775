package activitylog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pactsquad/pact-api/internal/adapters/sqlite"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/activitylog"
)

// Reader is a SQLite implementation of activitylog.Reader.
type Reader struct {
	db *gorm.DB
}

func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) ListByTrip(ctx context.Context, tripID domain.TripID, limit int) ([]domain.ActivityEntry, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite database")
	}
	if limit <= 0 {
		limit = activitylog.DefaultLimit
	}
	var rows []sqlite.ActivityRow
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", string(tripID)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Entry())
	}
	return out, nil
}
