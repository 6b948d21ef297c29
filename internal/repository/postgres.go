package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Use standard logger
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond, // Log queries slower than this
			LogLevel:                  gormLogger.Warn,        // Only log warnings or errors
			IgnoreRecordNotFoundError: true,                   // Suppress "record not found" errors
			Colorful:                  true,                   // Enable colorful logs
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.SyncLock{}, &models.ProcessedEvent{}, &models.SyncCursor{}, &models.PlatformRecord{}, &models.SyncRun{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) Ping() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Ping()
}

// AcquireLock is a single conditional write: the insert only replaces an
// existing row when that row's lease has already passed. Two concurrent
// callers cannot both see RowsAffected > 0.
func (db *PostgresDB) AcquireLock(resourceKey, ownerToken string, now time.Time, lease time.Duration) (bool, error) {
	res := db.Conn.Exec(`
		INSERT INTO sync_locks (resource_key, owner_token, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (resource_key) DO UPDATE
		SET owner_token = EXCLUDED.owner_token,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at  = EXCLUDED.expires_at
		WHERE sync_locks.expires_at <= EXCLUDED.acquired_at`,
		resourceKey, ownerToken, now, now.Add(lease))
	if res.Error != nil {
		return false, fmt.Errorf("failed to acquire lock: %s", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ReleaseLock deletes the row only when the token still matches, so a late
// release from a superseded run cannot drop a newer holder's lock.
func (db *PostgresDB) ReleaseLock(resourceKey, ownerToken string) (bool, error) {
	res := db.Conn.Where("resource_key = ? AND owner_token = ?", resourceKey, ownerToken).Delete(&models.SyncLock{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to release lock: %s", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (db *PostgresDB) ForceResetLock(resourceKey string) error {
	if err := db.Conn.Where("resource_key = ?", resourceKey).Delete(&models.SyncLock{}).Error; err != nil {
		return fmt.Errorf("failed to force-reset lock: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetLock(resourceKey string, now time.Time) (*models.SyncLock, error) {
	var lock models.SyncLock
	if err := db.Conn.Where("resource_key = ? AND expires_at > ?", resourceKey, now).First(&lock).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lock: %s", err)
	}
	return &lock, nil
}

func (db *PostgresDB) DeleteExpiredLocks(now time.Time) (int64, error) {
	res := db.Conn.Where("expires_at <= ?", now).Delete(&models.SyncLock{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %s", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordEventIfNew is an insert-if-absent keyed by event_id. Exactly one of
// any number of concurrent callers with the same id observes a fresh insert.
func (db *PostgresDB) RecordEventIfNew(event *models.ProcessedEvent) (bool, error) {
	res := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record event: %s", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (db *PostgresDB) UpdateEventStatus(eventID string, status models.EventStatus) error {
	if err := db.Conn.Model(&models.ProcessedEvent{}).Where("event_id = ?", eventID).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update event status: %s", err)
	}
	return nil
}

func (db *PostgresDB) PurgeEventsBefore(cutoff time.Time) (int64, error) {
	res := db.Conn.Where("received_at < ?", cutoff).Delete(&models.ProcessedEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge old events: %s", res.Error)
	}
	return res.RowsAffected, nil
}

// AdvanceCursor only moves the watermark forward. An out-of-order late run
// upserting an older observedAt leaves the stored cursor untouched.
func (db *PostgresDB) AdvanceCursor(collection string, observedAt time.Time, status models.CursorStatus) error {
	res := db.Conn.Exec(`
		INSERT INTO sync_cursors (collection, last_synced_at, last_status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection) DO UPDATE
		SET last_synced_at = EXCLUDED.last_synced_at,
		    last_status    = EXCLUDED.last_status,
		    updated_at     = EXCLUDED.updated_at
		WHERE sync_cursors.last_synced_at < EXCLUDED.last_synced_at`,
		collection, observedAt, status, time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("failed to advance cursor: %s", res.Error)
	}
	return nil
}

func (db *PostgresDB) GetCursor(collection string) (*models.SyncCursor, error) {
	var cursor models.SyncCursor
	if err := db.Conn.Where("collection = ?", collection).First(&cursor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrCursorNotFound
		}
		return nil, fmt.Errorf("failed to get cursor: %s", err)
	}
	return &cursor, nil
}

// UpsertPlatformRecords writes fetched entities keyed by (collection,
// external_id). Re-running a window rewrites the same rows.
func (db *PostgresDB) UpsertPlatformRecords(records []*models.PlatformRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	res := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at", "synced_at"}),
	}).Create(&records)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to upsert platform records: %s", res.Error)
	}
	return res.RowsAffected, nil
}

func (db *PostgresDB) CreateSyncRun(run *models.SyncRun) error {
	if err := db.Conn.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create sync run: %s", err)
	}
	return nil
}

func (db *PostgresDB) UpdateSyncRun(run *models.SyncRun) error {
	if err := db.Conn.Save(run).Error; err != nil {
		return fmt.Errorf("failed to update sync run: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetLastSyncRun(collection string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := db.Conn.Where("collection = ?", collection).Order("started_at DESC").First(&run).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last sync run: %s", err)
	}
	return &run, nil
}
