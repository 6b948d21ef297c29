package models

import "time"

// CursorStatus is the outcome recorded on a sync cursor.
type CursorStatus string

const (
	CursorStatusSynced  CursorStatus = "synced"
	CursorStatusDeleted CursorStatus = "deleted"
	CursorStatusError   CursorStatus = "error"
)

// SyncCursor tracks, per entity collection, the watermark of the most recent
// successful reconcile. Read by polling clients through the last-update
// endpoint; advanced only by a committed executor run, and only forward.
type SyncCursor struct {
	// Collection is the entity collection (orders, products, coupons, customers).
	Collection string `json:"collection" gorm:"column:collection;primaryKey;size:50"`
	// LastSyncedAt is the watermark observed at the start of the last committed run.
	LastSyncedAt time.Time `json:"last_synced_at" gorm:"column:last_synced_at;not null"`
	// LastStatus is the outcome of the last committed run.
	LastStatus CursorStatus `json:"last_status" gorm:"column:last_status;size:20;not null"`
	// UpdatedAt is when the cursor row itself was last written.
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (SyncCursor) TableName() string {
	return "sync_cursors"
}
