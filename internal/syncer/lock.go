package syncer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nuvemsync/nuvemsync/internal/clock"
	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

// LockManager grants exclusive, time-bounded ownership of a collection's
// sync to one run at a time. Acquisition and release are single conditional
// writes at the storage layer; expiry is passive.
type LockManager struct {
	logger *logger.Logger

	repo  models.Repository
	clock clock.Clock
	lease time.Duration
}

func NewLockManager(repo models.Repository, clk clock.Clock, lease time.Duration, logger *logger.Logger) *LockManager {
	return &LockManager{
		logger: logger,
		repo:   repo,
		clock:  clk,
		lease:  lease,
	}
}

// ResourceKey is the lock row key protecting a collection's reconciliation.
func ResourceKey(collection string) string {
	return fmt.Sprintf("nuvemshop-%s-sync", collection)
}

// Acquire wins the collection lock and returns the owner token, or
// ErrLockBusy when a live lock exists.
func (m *LockManager) Acquire(collection string) (string, error) {
	token := uuid.NewString()
	acquired, err := m.repo.AcquireLock(ResourceKey(collection), token, m.clock.Now(), m.lease)
	if err != nil {
		return "", err
	}
	if !acquired {
		return "", models.ErrLockBusy
	}
	m.logger.Debug("Sync lock acquired ", "collection ", collection, " token ", token)
	return token, nil
}

// Release drops the lock if token still owns it. ErrNotOwner means a newer
// run took over after this one's lease expired; non-fatal, logged upstream.
func (m *LockManager) Release(collection, token string) error {
	released, err := m.repo.ReleaseLock(ResourceKey(collection), token)
	if err != nil {
		return err
	}
	if !released {
		return models.ErrNotOwner
	}
	m.logger.Debug("Sync lock released ", "collection ", collection, " token ", token)
	return nil
}

// ForceReset unconditionally clears the lock. Administrative recovery only;
// the actor identity always lands in the log.
func (m *LockManager) ForceReset(collection, actor string) error {
	if err := m.repo.ForceResetLock(ResourceKey(collection)); err != nil {
		return err
	}
	m.logger.Warn("Sync lock force-reset ", "collection ", collection, " actor ", actor)
	return nil
}

// Holder returns the live lock for the collection, or nil when unlocked.
func (m *LockManager) Holder(collection string) (*models.SyncLock, error) {
	return m.repo.GetLock(ResourceKey(collection), m.clock.Now())
}
