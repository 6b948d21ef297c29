package models

import "time"

// EventStatus classifies how a webhook delivery was handled.
type EventStatus string

const (
	EventStatusAccepted  EventStatus = "accepted"
	EventStatusDuplicate EventStatus = "duplicate"
	EventStatusFailed    EventStatus = "failed"
)

// ProcessedEvent is the audit row for a webhook delivery. EventID is the
// platform's delivery identifier; a second delivery with the same EventID is
// classified duplicate and produces no side effects beyond this row.
type ProcessedEvent struct {
	// EventID is the external platform's unique event/delivery identifier.
	EventID string `json:"event_id" gorm:"column:event_id;primaryKey;size:255"`
	// EventType is the platform event category, e.g. "order/created".
	EventType string `json:"event_type" gorm:"column:event_type;size:100;not null"`
	// Collection is the entity collection the event belongs to.
	Collection string `json:"collection" gorm:"column:collection;size:50;index"`
	// EntityID is the platform identifier of the affected entity.
	EntityID string `json:"entity_id" gorm:"column:entity_id;size:255"`
	// ReceivedAt is when the delivery arrived.
	ReceivedAt time.Time `json:"received_at" gorm:"column:received_at;index;not null"`
	// Status is one of accepted, duplicate, failed.
	Status EventStatus `json:"status" gorm:"column:status;size:20;not null"`
}

// TableName specifies the table name for GORM
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
