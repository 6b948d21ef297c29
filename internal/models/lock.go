package models

import "time"

// SyncLock represents a distributed lease lock in the database.
// Used for serializing reconciliation runs between multiple instances.
type SyncLock struct {
	ResourceKey string    `gorm:"primaryKey;size:255"`
	OwnerToken  string    `gorm:"size:64;not null"`
	AcquiredAt  time.Time `gorm:"not null;index"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName specifies the table name for GORM
func (SyncLock) TableName() string {
	return "sync_locks"
}

// Expired reports whether the lease has passed. Expired locks are treated
// as absent by every reader; nobody deletes them except the sweeper or an
// explicit admin reset.
func (l *SyncLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
