package testutil

import (
	"errors"
	"sync"
	"time"

	"github.com/nuvemsync/nuvemsync/internal/models"
)

// FakeRepository is an in-memory models.Repository for tests. Every method
// holds one mutex, so it gives the same conditional-write atomicity the
// Postgres implementation gets from single statements.
type FakeRepository struct {
	mu sync.Mutex

	Locks   map[string]models.SyncLock
	Events  map[string]models.ProcessedEvent
	Cursors map[string]models.SyncCursor
	Records map[string]models.PlatformRecord
	Runs    []*models.SyncRun

	// FailUpserts makes UpsertPlatformRecords fail after N successful calls
	// when set to a non-negative value.
	FailUpserts int
	upsertCalls int
	// PingErr is returned by Ping.
	PingErr error
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		Locks:       make(map[string]models.SyncLock),
		Events:      make(map[string]models.ProcessedEvent),
		Cursors:     make(map[string]models.SyncCursor),
		Records:     make(map[string]models.PlatformRecord),
		FailUpserts: -1,
	}
}

func (f *FakeRepository) Close() error { return nil }

func (f *FakeRepository) Ping() error { return f.PingErr }

func (f *FakeRepository) AcquireLock(resourceKey, ownerToken string, now time.Time, lease time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.Locks[resourceKey]; ok && !existing.Expired(now) {
		return false, nil
	}
	f.Locks[resourceKey] = models.SyncLock{
		ResourceKey: resourceKey,
		OwnerToken:  ownerToken,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(lease),
	}
	return true, nil
}

func (f *FakeRepository) ReleaseLock(resourceKey, ownerToken string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.Locks[resourceKey]
	if !ok || existing.OwnerToken != ownerToken {
		return false, nil
	}
	delete(f.Locks, resourceKey)
	return true, nil
}

func (f *FakeRepository) ForceResetLock(resourceKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Locks, resourceKey)
	return nil
}

func (f *FakeRepository) GetLock(resourceKey string, now time.Time) (*models.SyncLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.Locks[resourceKey]
	if !ok || existing.Expired(now) {
		return nil, nil
	}
	lock := existing
	return &lock, nil
}

func (f *FakeRepository) DeleteExpiredLocks(now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for key, lock := range f.Locks {
		if lock.Expired(now) {
			delete(f.Locks, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *FakeRepository) RecordEventIfNew(event *models.ProcessedEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Events[event.EventID]; ok {
		return false, nil
	}
	f.Events[event.EventID] = *event
	return true, nil
}

func (f *FakeRepository) UpdateEventStatus(eventID string, status models.EventStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event, ok := f.Events[eventID]; ok {
		event.Status = status
		f.Events[eventID] = event
	}
	return nil
}

func (f *FakeRepository) PurgeEventsBefore(cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var purged int64
	for id, event := range f.Events {
		if event.ReceivedAt.Before(cutoff) {
			delete(f.Events, id)
			purged++
		}
	}
	return purged, nil
}

func (f *FakeRepository) AdvanceCursor(collection string, observedAt time.Time, status models.CursorStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.Cursors[collection]; ok && !existing.LastSyncedAt.Before(observedAt) {
		return nil
	}
	f.Cursors[collection] = models.SyncCursor{
		Collection:   collection,
		LastSyncedAt: observedAt,
		LastStatus:   status,
		UpdatedAt:    time.Now().UTC(),
	}
	return nil
}

func (f *FakeRepository) GetCursor(collection string) (*models.SyncCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.Cursors[collection]
	if !ok {
		return nil, models.ErrCursorNotFound
	}
	cursor := existing
	return &cursor, nil
}

func (f *FakeRepository) UpsertPlatformRecords(records []*models.PlatformRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailUpserts >= 0 && f.upsertCalls >= f.FailUpserts {
		return 0, errors.New("storage failure")
	}
	f.upsertCalls++
	for _, record := range records {
		f.Records[record.Collection+"/"+record.ExternalID] = *record
	}
	return int64(len(records)), nil
}

func (f *FakeRepository) CreateSyncRun(run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *run
	f.Runs = append(f.Runs, &copied)
	return nil
}

func (f *FakeRepository) UpdateSyncRun(run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.Runs {
		if existing.ID == run.ID {
			copied := *run
			f.Runs[i] = &copied
			return nil
		}
	}
	copied := *run
	f.Runs = append(f.Runs, &copied)
	return nil
}

func (f *FakeRepository) GetLastSyncRun(collection string) (*models.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Runs) - 1; i >= 0; i-- {
		if f.Runs[i].Collection == collection {
			copied := *f.Runs[i]
			return &copied, nil
		}
	}
	return nil, nil
}
