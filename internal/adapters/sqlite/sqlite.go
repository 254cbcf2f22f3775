// Package sqlite stores the trip ledger in a single SQLite file through gorm.
package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pactsquad/pact-api/internal/domain"
)

// TripRow is the trips table.
type TripRow struct {
	ID          string    `gorm:"column:id;primaryKey;size:64"`
	Title       string    `gorm:"column:title;not null;check:chk_trips_title,title <> ''"`
	Destination string    `gorm:"column:destination;not null;check:chk_trips_destination,destination <> ''"`
	Status      string    `gorm:"column:status;not null;default:active"`
	CreatedBy   string    `gorm:"column:created_by;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
}

func (TripRow) TableName() string { return "trips" }

// MemberRow is the trip_members table. (trip_id, user_id) is unique.
type MemberRow struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	TripID      string    `gorm:"column:trip_id;not null;uniqueIndex:trip_members_trip_user_unique"`
	UserID      string    `gorm:"column:user_id;not null;uniqueIndex:trip_members_trip_user_unique;index:trip_members_user_idx"`
	Role        string    `gorm:"column:role;not null;check:chk_trip_members_role,role IN ('creator','member')"`
	IntentLevel string    `gorm:"column:intent_level;not null"`
	JoinedAt    time.Time `gorm:"column:joined_at;not null"`
}

func (MemberRow) TableName() string { return "trip_members" }

// ActivityRow is the append-only activity_log table.
type ActivityRow struct {
	ID        int64             `gorm:"column:id;primaryKey;autoIncrement"`
	TripID    string            `gorm:"column:trip_id;not null;index:activity_log_trip_idx"`
	ActorID   string            `gorm:"column:actor_id;not null"`
	Type      string            `gorm:"column:type;not null;check:chk_activity_log_type,type <> ''"`
	Payload   map[string]string `gorm:"column:payload;type:text;serializer:json;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;not null;autoCreateTime:false"`
}

func (ActivityRow) TableName() string { return "activity_log" }

// OpenSQLite opens the database at path and migrates the schema.
func OpenSQLite(path string, log *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&TripRow{}, &MemberRow{}, &ActivityRow{}); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("database initialized", zap.String("path", path))
	}
	return db, nil
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err came from a CHECK or NOT NULL constraint.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "CHECK constraint failed") || strings.Contains(msg, "NOT NULL constraint failed")
}

func ActivityRowFrom(e domain.ActivityEntry) ActivityRow {
	payload := make(map[string]string, len(e.Payload))
	for k, v := range e.Payload {
		payload[k] = v
	}
	return ActivityRow{
		TripID:    string(e.TripID),
		ActorID:   string(e.ActorID),
		Type:      string(e.Type),
		Payload:   payload,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func (r ActivityRow) Entry() domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:        r.ID,
		TripID:    domain.TripID(r.TripID),
		ActorID:   domain.UserID(r.ActorID),
		Type:      domain.ActivityType(r.Type),
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func MemberRowFrom(m domain.Membership) MemberRow {
	return MemberRow{
		TripID:      string(m.TripID),
		UserID:      string(m.UserID),
		Role:        string(m.Role),
		IntentLevel: string(m.IntentLevel),
		JoinedAt:    m.JoinedAt.UTC(),
	}
}

func (r MemberRow) Membership() domain.Membership {
	return domain.Membership{
		TripID:      domain.TripID(r.TripID),
		UserID:      domain.UserID(r.UserID),
		Role:        domain.Role(r.Role),
		IntentLevel: domain.IntentLevel(r.IntentLevel),
		JoinedAt:    r.JoinedAt.UTC(),
	}
}
