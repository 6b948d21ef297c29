package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nuvemsync/nuvemsync/internal/clock"
	"github.com/nuvemsync/nuvemsync/internal/config"
	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

const (
	// sweepInterval is how often retention sweeps run.
	sweepInterval = 5 * time.Minute
	// runTimeout bounds one reconcile end to end.
	runTimeout = 4 * time.Minute
)

// Syncer is the executor for reconcile runs. Each run moves through
// pending -> locked -> reconciling -> committed/failed; within one
// collection the lock serializes runs, across collections they are
// independent.
type Syncer struct {
	logger *logger.Logger
	config *config.Config

	repo     models.Repository
	platform models.PlatformService
	locks    *LockManager
	alerts   models.AlertService
	clock    clock.Clock
	queue    *Queue
}

// NewSyncer creates a new Syncer instance
func NewSyncer(
	repo models.Repository,
	platform models.PlatformService,
	locks *LockManager,
	alerts models.AlertService,
	clk clock.Clock,
	logger *logger.Logger,
	cfg *config.Config,
) *Syncer {
	s := &Syncer{
		repo:     repo,
		platform: platform,
		locks:    locks,
		alerts:   alerts,
		clock:    clk,
		logger:   logger,
		config:   cfg,
	}
	s.queue = NewQueue(s.runDeferred, alerts, logger, QueueConfig{
		MaxAttempts: cfg.SyncMaxAttempts,
	})
	return s
}

// Start runs the retention sweepers until ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	s.queue.Start(ctx)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.queue.Stop()
			return
		case <-ticker.C:
			s.logger.Debug("Running retention sweep")
			purged, err := s.repo.PurgeEventsBefore(s.clock.Now().Add(-s.config.IdempotencyRetention))
			if err != nil {
				s.logger.Error("Failed to purge old processed events", "error", err)
			} else if purged > 0 {
				s.logger.Info("Purged old processed events ", "count ", purged)
			}
			// Stale lock rows are already ignored by readers; this only keeps
			// the table small.
			if _, err := s.repo.DeleteExpiredLocks(s.clock.Now()); err != nil {
				s.logger.Error("Failed to delete expired locks", "error", err)
			}
		}
	}
}

// Trigger enqueues a webhook-initiated reconcile. Returns once the handoff
// is confirmed; the run itself happens on the queue worker.
func (s *Syncer) Trigger(collection string) {
	s.queue.Enqueue(collection)
}

// ForceSync runs a reconcile immediately under the normal lock discipline.
// A live run surfaces as ErrLockBusy; manual runs are never queued.
func (s *Syncer) ForceSync(ctx context.Context, collection string) (*models.SyncRun, error) {
	return s.run(ctx, collection, models.RunTriggerForce)
}

// ResetLock unconditionally clears the collection lock.
func (s *Syncer) ResetLock(collection, actor string) error {
	return s.locks.ForceReset(collection, actor)
}

// LastUpdate returns the collection cursor for polling clients.
func (s *Syncer) LastUpdate(collection string) (*models.SyncCursor, error) {
	return s.repo.GetCursor(collection)
}

// runDeferred adapts run for the queue worker.
func (s *Syncer) runDeferred(ctx context.Context, collection string) error {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	_, err := s.run(runCtx, collection, models.RunTriggerWebhook)
	return err
}

func (s *Syncer) run(ctx context.Context, collection string, trigger models.RunTrigger) (*models.SyncRun, error) {
	token, err := s.locks.Acquire(collection)
	if err != nil {
		if errors.Is(err, models.ErrLockBusy) {
			s.logger.Debug("Sync lock busy ", "collection ", collection, " trigger ", trigger)
			return nil, err
		}
		s.alerts.Alert("Sync lock storage failure", fmt.Sprintf("collection %s: %s", collection, err))
		return nil, err
	}

	run := &models.SyncRun{
		ID:         uuid.NewString(),
		Collection: collection,
		Trigger:    trigger,
		Status:     models.RunStatusLocked,
		StartedAt:  s.clock.Now(),
	}
	if err := s.repo.CreateSyncRun(run); err != nil {
		// Audit row only; the run itself can proceed.
		s.logger.Error("Failed to create sync run row", "error", err)
	}

	// Watermark is observed at fetch start so records created mid-run fall
	// into the next window instead of being skipped.
	observedAt := s.clock.Now()
	watermark := time.Time{}
	if cursor, err := s.repo.GetCursor(collection); err == nil {
		watermark = cursor.LastSyncedAt
	} else if !errors.Is(err, models.ErrCursorNotFound) {
		return s.fail(run, token, fmt.Errorf("failed to read cursor: %w", err))
	}
	run.Watermark = watermark
	run.Status = models.RunStatusReconciling

	s.logger.Info("Reconcile started ", "collection ", collection, " trigger ", trigger, " watermark ", watermark)

	for page := 1; ; {
		fetched, err := s.platform.FetchUpdatedSince(ctx, collection, watermark, page)
		if err != nil {
			return s.fail(run, token, err)
		}
		run.Fetched += len(fetched.Records)

		upserted, err := s.repo.UpsertPlatformRecords(fetched.Records)
		if err != nil {
			s.alerts.Alert("Sync storage failure", fmt.Sprintf("collection %s: %s", collection, err))
			return s.fail(run, token, err)
		}
		run.Upserted += int(upserted)

		if !fetched.HasNext {
			break
		}
		page = fetched.NextPage
	}

	if err := s.repo.AdvanceCursor(collection, observedAt, models.CursorStatusSynced); err != nil {
		s.alerts.Alert("Sync cursor storage failure", fmt.Sprintf("collection %s: %s", collection, err))
		return s.fail(run, token, err)
	}

	run.Status = models.RunStatusCommitted
	run.FinishedAt = s.clock.Now()
	if err := s.repo.UpdateSyncRun(run); err != nil {
		s.logger.Error("Failed to update sync run row", "error", err)
	}
	s.releaseLock(collection, token)

	s.logger.Info("Reconcile committed ", "collection ", collection, " fetched ", run.Fetched, " upserted ", run.Upserted)
	return run, nil
}

// fail marks the run failed and releases the lock without advancing the
// cursor; the next run refetches the same window and overwrites any partial
// upserts.
func (s *Syncer) fail(run *models.SyncRun, token string, cause error) (*models.SyncRun, error) {
	s.logger.Error("Reconcile failed ", "collection ", run.Collection, " error ", cause)

	run.Status = models.RunStatusFailed
	run.Error = cause.Error()
	run.FinishedAt = s.clock.Now()
	if err := s.repo.UpdateSyncRun(run); err != nil {
		s.logger.Error("Failed to update sync run row", "error", err)
	}
	s.releaseLock(run.Collection, token)
	return run, cause
}

func (s *Syncer) releaseLock(collection, token string) {
	if err := s.locks.Release(collection, token); err != nil {
		if errors.Is(err, models.ErrNotOwner) {
			// The lease expired mid-run and someone else took over.
			s.logger.Warn("Sync lock release skipped, lock owned elsewhere ", "collection ", collection)
			return
		}
		s.logger.Error("Failed to release sync lock", "collection", collection, "error", err)
	}
}
