package models

import "time"

// PlatformRecord is the local mirror of one entity fetched from the commerce
// platform. Rows are keyed by (collection, external_id) so repeated partial
// runs converge instead of duplicating.
type PlatformRecord struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Collection is the entity collection the record belongs to.
	Collection string `json:"collection" gorm:"column:collection;size:50;not null;uniqueIndex:uniq_collection_external"`
	// ExternalID is the platform's identifier for the entity.
	ExternalID string `json:"external_id" gorm:"column:external_id;size:255;not null;uniqueIndex:uniq_collection_external"`
	// Payload is the raw platform representation of the entity.
	Payload string `json:"payload" gorm:"column:payload;type:text"`
	// UpdatedAt is the platform-side modification timestamp.
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;index"`
	// SyncedAt is when this row was last written by a reconcile run.
	SyncedAt time.Time `json:"synced_at" gorm:"column:synced_at"`
}

// TableName specifies the table name for GORM
func (PlatformRecord) TableName() string {
	return "platform_records"
}
