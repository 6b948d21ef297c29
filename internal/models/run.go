package models

import "time"

// RunStatus tracks the executor state machine of a reconcile run.
type RunStatus string

const (
	RunStatusPending     RunStatus = "pending"
	RunStatusLocked      RunStatus = "locked"
	RunStatusReconciling RunStatus = "reconciling"
	RunStatusCommitted   RunStatus = "committed"
	RunStatusFailed      RunStatus = "failed"
)

// RunTrigger records what started a run.
type RunTrigger string

const (
	RunTriggerWebhook RunTrigger = "webhook"
	RunTriggerForce   RunTrigger = "force"
)

// SyncRun is the audit row for one executor run, returned to administrative
// callers of the force-sync endpoint.
type SyncRun struct {
	ID string `json:"id" gorm:"column:id;primaryKey;size:64"`
	// Collection is the entity collection the run reconciled.
	Collection string `json:"collection" gorm:"column:collection;size:50;index;not null"`
	// Trigger is webhook or force.
	Trigger RunTrigger `json:"trigger" gorm:"column:trigger;size:20;not null"`
	// Status is the terminal (or current) state of the run.
	Status RunStatus `json:"status" gorm:"column:status;size:20;index;not null"`
	// Watermark is the incremental watermark the run fetched from.
	Watermark time.Time `json:"watermark" gorm:"column:watermark"`
	// StartedAt / FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at" gorm:"column:started_at;index;not null"`
	FinishedAt time.Time `json:"finished_at" gorm:"column:finished_at"`
	// Fetched is the number of records returned by the platform.
	Fetched int `json:"fetched" gorm:"column:fetched"`
	// Upserted is the number of records written to the local mirror.
	Upserted int `json:"upserted" gorm:"column:upserted"`
	// Error holds the failure message for failed runs.
	Error string `json:"error,omitempty" gorm:"column:error;type:text"`
}

// TableName specifies the table name for GORM
func (SyncRun) TableName() string {
	return "sync_runs"
}
