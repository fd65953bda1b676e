package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neudev/attemptd/internal/model"
)

// attemptState is the GORM row backing SQLiteStore.
type attemptState struct {
	StateKey   string `gorm:"primaryKey;size:160"`
	Namespace  string `gorm:"index;size:64;not null"`
	ActivityID int64  `gorm:"not null"`
	Record     string `gorm:"type:text;not null"`
	EndTime    int64  `gorm:"not null"`
	UpdatedAt  time.Time
}

func (attemptState) TableName() string { return "attempt_states" }

// SQLiteStore persists records through GORM; the default on-device store.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore migrates the schema and returns the store.
func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&attemptState{}); err != nil {
		return nil, fmt.Errorf("migrate attempt_states: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key model.SessionKey) (*model.SessionRecord, error) {
	var row attemptState
	err := s.db.WithContext(ctx).Where("state_key = ?", StorageKey(key)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load attempt state: %w", err)
	}
	return decodeRecord([]byte(row.Record))
}

func (s *SQLiteStore) Save(ctx context.Context, key model.SessionKey, rec *model.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	row := attemptState{
		StateKey:   StorageKey(key),
		Namespace:  key.Namespace,
		ActivityID: key.ActivityID,
		Record:     string(data),
		EndTime:    rec.EndTime,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"record", "end_time", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save attempt state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key model.SessionKey) error {
	err := s.db.WithContext(ctx).Where("state_key = ?", StorageKey(key)).Delete(&attemptState{}).Error
	if err != nil {
		return fmt.Errorf("clear attempt state: %w", err)
	}
	return nil
}
