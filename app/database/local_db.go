package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// LocalDB is the durable local store. Every logical record is one JSON
// document keyed by name.
type LocalDB struct {
	db     *gorm.DB
	dbPath string
}

// LocalRecord holds one persisted record
type LocalRecord struct {
	Key       string    `gorm:"primaryKey;column:record_key"`
	Data      string    `gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncStatus tracks synchronization status
type SyncStatus struct {
	ID            uint       `gorm:"primaryKey" json:"-"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	LastSuccessAt *time.Time `json:"last_success_at"`
	Status        string     `json:"status"` // "syncing", "completed", "failed", "offline"
	PendingOrders int        `json:"pending_orders"`
	LastError     string     `json:"last_error"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SyncLog tracks synchronization history
type SyncLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EntityType string    `json:"entity_type"` // "order", "table"
	Action     string    `json:"action"`      // "push", "pull"
	Count      int       `json:"count"`
	Status     string    `json:"status"` // "success", "failed"
	Error      string    `json:"error"`
	SyncedAt   time.Time `json:"synced_at"`
}

// OpenLocalDB opens (creating if needed) the SQLite file at dbPath
func OpenLocalDB(dbPath string) (*LocalDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// CGO-free driver
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to local database: %w", err)
	}

	// SQLite allows a single writer
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	local := &LocalDB{db: db, dbPath: dbPath}
	if err := local.runMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run local migrations: %w", err)
	}
	return local, nil
}

func (l *LocalDB) runMigrations() error {
	return l.db.AutoMigrate(
		&LocalRecord{},
		&SyncStatus{},
		&SyncLog{},
	)
}

// Load decodes the record stored under key into dest. It reports false when
// the record does not exist, leaving dest untouched.
func (l *LocalDB) Load(ctx context.Context, key string, dest any) (bool, error) {
	var record LocalRecord
	err := l.db.WithContext(ctx).Where("record_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(record.Data), dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Save writes all records in a single transaction
func (l *LocalDB) Save(ctx context.Context, records map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]LocalRecord, 0, len(records))
	now := time.Now().UTC()
	for key, value := range records {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		rows = append(rows, LocalRecord{Key: key, Data: string(data), UpdatedAt: now})
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rows).Error
	})
}

// UpdateSyncStatus updates sync status
func (l *LocalDB) UpdateSyncStatus(status string, syncErr string, pendingOrders int) error {
	var syncStatus SyncStatus
	if err := l.db.FirstOrCreate(&syncStatus).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	syncStatus.LastSyncAt = &now
	if status == "completed" {
		syncStatus.LastSuccessAt = &now
	}
	syncStatus.Status = status
	syncStatus.LastError = syncErr
	syncStatus.PendingOrders = pendingOrders
	syncStatus.UpdatedAt = now

	return l.db.Save(&syncStatus).Error
}

// GetSyncStatus gets current sync status
func (l *LocalDB) GetSyncStatus() (*SyncStatus, error) {
	var status SyncStatus
	err := l.db.First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &SyncStatus{Status: "never"}, nil
	}
	return &status, err
}

// LogSync records one sync step
func (l *LocalDB) LogSync(entityType, action string, count int, status, syncErr string) error {
	return l.db.Create(&SyncLog{
		EntityType: entityType,
		Action:     action,
		Count:      count,
		Status:     status,
		Error:      syncErr,
		SyncedAt:   time.Now().UTC(),
	}).Error
}

// RecentSyncLogs returns the latest limit sync log rows, newest first
func (l *LocalDB) RecentSyncLogs(limit int) ([]SyncLog, error) {
	var logs []SyncLog
	err := l.db.Order("synced_at desc, id desc").Limit(limit).Find(&logs).Error
	return logs, err
}

// ClearSyncLogs deletes sync log rows older than daysOld days
func (l *LocalDB) ClearSyncLogs(daysOld int) error {
	cutoffDate := time.Now().UTC().AddDate(0, 0, -daysOld)
	return l.db.Where("synced_at < ?", cutoffDate).Delete(&SyncLog{}).Error
}

// Path returns the database file path
func (l *LocalDB) Path() string {
	return l.dbPath
}

// Close closes the local database
func (l *LocalDB) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
