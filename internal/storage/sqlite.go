package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// entry is the row shape shared by the SQL drivers (table client_storage).
type entry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:191"`
	Value     string    `gorm:"column:entry_value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (entry) TableName() string { return "client_storage" }

// SQLiteStore persists values in a local SQLite file through GORM.
type SQLiteStore struct {
	db        *gorm.DB
	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path and migrates the
// client_storage table. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("storage: sqlite path is empty")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %q: %w", path, err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("storage: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).Take(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: sqlite get %q: %w", key, err)
	}
	return e.Value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	e := entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("storage: sqlite set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&entry{}).Error; err != nil {
		return fmt.Errorf("storage: sqlite remove %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		sqlDB, dbErr := s.db.DB()
		if dbErr != nil {
			err = dbErr
			return
		}
		err = sqlDB.Close()
	})
	return err
}
