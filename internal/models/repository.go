package models

import "time"

type Repository interface {
	Close() error
	Ping() error

	// AcquireLock atomically inserts a lock row for resourceKey unless a
	// non-expired row exists. Returns true when the caller won the lock.
	AcquireLock(resourceKey, ownerToken string, now time.Time, lease time.Duration) (bool, error)
	// ReleaseLock deletes the lock row only when ownerToken matches the
	// current holder. Returns true when a row was deleted.
	ReleaseLock(resourceKey, ownerToken string) (bool, error)
	// ForceResetLock unconditionally deletes the lock row.
	ForceResetLock(resourceKey string) error
	// GetLock returns the live lock for resourceKey, or nil if absent/expired.
	GetLock(resourceKey string, now time.Time) (*SyncLock, error)
	// DeleteExpiredLocks removes stale lock rows. Store hygiene only; expiry
	// itself is passive.
	DeleteExpiredLocks(now time.Time) (int64, error)

	// RecordEventIfNew inserts the event audit row keyed by EventID.
	// Returns true when the event is fresh; false when a row already existed.
	RecordEventIfNew(event *ProcessedEvent) (bool, error)
	// UpdateEventStatus rewrites the status of an existing event row.
	UpdateEventStatus(eventID string, status EventStatus) error
	// PurgeEventsBefore removes audit rows older than cutoff.
	PurgeEventsBefore(cutoff time.Time) (int64, error)

	// AdvanceCursor upserts the collection cursor, advancing LastSyncedAt
	// only when observedAt is newer than the stored watermark.
	AdvanceCursor(collection string, observedAt time.Time, status CursorStatus) error
	// GetCursor returns the cursor for collection or ErrCursorNotFound.
	GetCursor(collection string) (*SyncCursor, error)

	// UpsertPlatformRecords writes fetched records to the local mirror keyed
	// by (collection, external_id).
	UpsertPlatformRecords(records []*PlatformRecord) (int64, error)

	CreateSyncRun(run *SyncRun) error
	UpdateSyncRun(run *SyncRun) error
	GetLastSyncRun(collection string) (*SyncRun, error)
}
