package models

import "context"

// SyncService is the executor surface consumed by the HTTP API and the
// ingestion pipeline.
type SyncService interface {
	// ForceSync runs a reconcile for collection immediately, under the normal
	// lock discipline. Returns ErrLockBusy when a run is already in progress.
	ForceSync(ctx context.Context, collection string) (*SyncRun, error)
	// Trigger enqueues a webhook-initiated reconcile for collection. Returns
	// once the handoff is confirmed, not once the sync completes.
	Trigger(collection string)
	// ResetLock unconditionally clears the collection's lock. Actor identifies
	// the administrative caller for the audit log.
	ResetLock(collection, actor string) error
	// LastUpdate returns the collection cursor or ErrCursorNotFound.
	LastUpdate(collection string) (*SyncCursor, error)
}

// AlertService delivers operator alerts for conditions that need human
// attention (retry exhaustion, storage failures).
type AlertService interface {
	Alert(subject, message string)
}

// APIServer is implemented by the HTTP front end.
type APIServer interface {
	Start()
	Shutdown() error
}
