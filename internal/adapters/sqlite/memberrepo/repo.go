package memberrepo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pactsquad/pact-api/internal/adapters/sqlite"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/memberrepo"
)

// Repo is a SQLite implementation of memberrepo.Repository.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, tripID domain.TripID, userID domain.UserID) (domain.Membership, error) {
	if r.db == nil {
		return domain.Membership{}, errors.New("nil sqlite database")
	}
	var row sqlite.MemberRow
	err := r.db.WithContext(ctx).
		Where("trip_id = ? AND user_id = ?", string(tripID), string(userID)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Membership{}, memberrepo.ErrNotFound
	}
	if err != nil {
		return domain.Membership{}, err
	}
	return row.Membership(), nil
}

func (r *Repo) Join(ctx context.Context, m domain.Membership, entry domain.ActivityEntry) error {
	if r.db == nil {
		return errors.New("nil sqlite database")
	}
	if entry.TripID != m.TripID {
		return fmt.Errorf("%w: activity entry for another trip", memberrepo.ErrInvalid)
	}
	member := sqlite.MemberRowFrom(m)
	activity := sqlite.ActivityRowFrom(entry)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trips int64
		if err := tx.Model(&sqlite.TripRow{}).Where("id = ?", member.TripID).Count(&trips).Error; err != nil {
			return err
		}
		if trips == 0 {
			return memberrepo.ErrTripNotFound
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		return tx.Create(&activity).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, memberrepo.ErrTripNotFound):
		return err
	case sqlite.IsUniqueViolation(err):
		return memberrepo.ErrAlreadyMember
	case sqlite.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", memberrepo.ErrInvalid, err)
	}
	return err
}

func (r *Repo) ListByTrip(ctx context.Context, tripID domain.TripID) ([]domain.Membership, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite database")
	}
	var rows []sqlite.MemberRow
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", string(tripID)).
		Order("joined_at ASC").
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Membership())
	}
	return out, nil
}
