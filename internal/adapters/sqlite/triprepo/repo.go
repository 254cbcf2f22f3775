package triprepo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pactsquad/pact-api/internal/adapters/sqlite"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

// Repo is a SQLite implementation of triprepo.Repository.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateWithCreator(ctx context.Context, c triprepo.Creation) error {
	if r.db == nil {
		return errors.New("nil sqlite database")
	}
	if !c.Trip.ID.Valid() {
		return fmt.Errorf("%w: trip id %q is not a uuid", triprepo.ErrInvalid, c.Trip.ID)
	}
	trip := sqlite.TripRow{
		ID:          string(c.Trip.ID),
		Title:       c.Trip.Title,
		Destination: c.Trip.Destination,
		Status:      string(c.Trip.Status),
		CreatedBy:   string(c.Trip.CreatedBy),
		CreatedAt:   c.Trip.CreatedAt.UTC(),
	}
	creator := sqlite.MemberRowFrom(c.Creator)
	activity := sqlite.ActivityRowFrom(c.Activity)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trip).Error; err != nil {
			return err
		}
		if err := tx.Create(&creator).Error; err != nil {
			return err
		}
		return tx.Create(&activity).Error
	})
	switch {
	case err == nil:
		return nil
	case sqlite.IsUniqueViolation(err):
		return triprepo.ErrAlreadyExists
	case sqlite.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", triprepo.ErrInvalid, err)
	}
	return err
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	if r.db == nil {
		return triprepo.Trip{}, errors.New("nil sqlite database")
	}
	if !id.Valid() {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	var row sqlite.TripRow
	err := r.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	if err != nil {
		return triprepo.Trip{}, err
	}
	return toTrip(row), nil
}

type memberTripRow struct {
	sqlite.TripRow
	Role string `gorm:"column:role"`
}

func (r *Repo) ListForUser(ctx context.Context, userID domain.UserID) ([]triprepo.MemberTrip, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite database")
	}
	var rows []memberTripRow
	err := r.db.WithContext(ctx).
		Table("trip_members AS m").
		Select("t.id, t.title, t.destination, t.status, t.created_by, t.created_at, m.role").
		Joins("JOIN trips AS t ON t.id = m.trip_id").
		Where("m.user_id = ?", string(userID)).
		Order("t.created_at DESC").
		Order("t.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]triprepo.MemberTrip, 0, len(rows))
	for _, row := range rows {
		out = append(out, triprepo.MemberTrip{Trip: toTrip(row.TripRow), Role: domain.Role(row.Role)})
	}
	return out, nil
}

func toTrip(row sqlite.TripRow) triprepo.Trip {
	return triprepo.Trip{
		ID:          domain.TripID(row.ID),
		Title:       row.Title,
		Destination: row.Destination,
		Status:      domain.TripStatus(row.Status),
		CreatedBy:   domain.UserID(row.CreatedBy),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}
