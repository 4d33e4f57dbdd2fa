package throttle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoginFailure is one failed attempt from a source.
type LoginFailure struct {
	ID         uint      `gorm:"primaryKey"`
	SourceKey  string    `gorm:"size:255;not null;index:idx_throttle_key_time,priority:1"`
	OccurredAt time.Time `gorm:"not null;index:idx_throttle_key_time,priority:2"`
}

func (LoginFailure) TableName() string {
	return "throttle_failures"
}

type SourceLock struct {
	SourceKey   string    `gorm:"primaryKey;size:255"`
	LockedUntil time.Time `gorm:"not null;index"`
}

func (SourceLock) TableName() string {
	return "throttle_locks"
}

func Models() []any {
	return []any{&LoginFailure{}, &SourceLock{}}
}

// DatabaseStore appends one row per failure, so concurrent writers never
// overwrite each other's counts.
type DatabaseStore struct {
	db        *gorm.DB
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewDatabaseStore(db *gorm.DB, retention time.Duration) *DatabaseStore {
	return &DatabaseStore{db: db, retention: retention, stop: make(chan struct{})}
}

func (s *DatabaseStore) done() <-chan struct{} {
	return s.stop
}

func (s *DatabaseStore) stopSweep() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *DatabaseStore) AddFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	at = at.UTC()
	cutoff := at.Add(-window)

	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_key = ? AND occurred_at <= ?", key, cutoff).Delete(&LoginFailure{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&LoginFailure{SourceKey: key, OccurredAt: at}).Error; err != nil {
			return err
		}
		return tx.Model(&LoginFailure{}).Where("source_key = ? AND occurred_at > ?", key, cutoff).Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record login failure: %w", err)
	}
	return int(count), nil
}

func (s *DatabaseStore) Failures(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&LoginFailure{}).
		Where("source_key = ? AND occurred_at > ?", key, at.UTC().Add(-window)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count login failures: %w", err)
	}
	return int(count), nil
}

func (s *DatabaseStore) Lock(ctx context.Context, key string, until time.Time) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"locked_until"}),
	}).Create(&SourceLock{SourceKey: key, LockedUntil: until.UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to lock source: %w", err)
	}
	return nil
}

func (s *DatabaseStore) LockedUntil(ctx context.Context, key string) (time.Time, bool, error) {
	var lock SourceLock
	err := s.db.WithContext(ctx).Where("source_key = ?", key).First(&lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read source lock: %w", err)
	}
	return lock.LockedUntil, true, nil
}

func (s *DatabaseStore) Clear(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_key = ?", key).Delete(&LoginFailure{}).Error; err != nil {
			return err
		}
		return tx.Where("source_key = ?", key).Delete(&SourceLock{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to clear source: %w", err)
	}
	return nil
}

// Sweep deletes failures older than the retention and expired locks.
func (s *DatabaseStore) Sweep(ctx context.Context, now time.Time) error {
	now = now.UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("occurred_at <= ?", now.Add(-s.retention)).Delete(&LoginFailure{}).Error; err != nil {
			return err
		}
		return tx.Where("locked_until <= ?", now).Delete(&SourceLock{}).Error
	})
}
