package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nuvemsync/nuvemsync/internal/clock"
	"github.com/nuvemsync/nuvemsync/internal/config"
	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/internal/testutil"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

type fakePlatform struct {
	mu sync.Mutex
	// pages per collection, served in order
	pages map[string][]*models.PlatformPage
	// failOnPage makes the given page number fail with ErrUpstreamUnavailable
	failOnPage int
	// watermarks records the watermark of every fetch call
	watermarks []time.Time
	fetchCalls int
}

func (f *fakePlatform) FetchUpdatedSince(_ context.Context, collection string, watermark time.Time, page int) (*models.PlatformPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if page == 1 {
		f.watermarks = append(f.watermarks, watermark)
	}
	if f.failOnPage > 0 && page == f.failOnPage {
		return nil, fmt.Errorf("%w: status 503", models.ErrUpstreamUnavailable)
	}
	pages := f.pages[collection]
	if page < 1 || page > len(pages) {
		return &models.PlatformPage{}, nil
	}
	return pages[page-1], nil
}

type fakeAlerts struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeAlerts) Alert(subject, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subjects)
}

func records(collection string, n int, updatedAt time.Time) []*models.PlatformRecord {
	out := make([]*models.PlatformRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &models.PlatformRecord{
			Collection: collection,
			ExternalID: fmt.Sprintf("%s-%d", collection, i),
			Payload:    "{}",
			UpdatedAt:  updatedAt,
		})
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		LockLease:            5 * time.Minute,
		IdempotencyRetention: 30 * 24 * time.Hour,
		SyncMaxAttempts:      3,
	}
}

func newTestSyncer(repo models.Repository, shop models.PlatformService, alerts models.AlertService, clk clock.Clock) *Syncer {
	locks := NewLockManager(repo, clk, 5*time.Minute, logger.NewNop())
	return NewSyncer(repo, shop, locks, alerts, clk, logger.NewNop(), testConfig())
}

func TestLockManager(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("exactly one concurrent acquire wins", func(t *testing.T) {
		repo := testutil.NewFakeRepository()
		locks := NewLockManager(repo, clock.NewFixed(now), 5*time.Minute, logger.NewNop())

		const callers = 32
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		busy := 0
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := locks.Acquire("orders")
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					winners++
				} else if errors.Is(err, models.ErrLockBusy) {
					busy++
				}
			}()
		}
		wg.Wait()

		if winners != 1 {
			t.Fatalf("expected exactly 1 winner, got %d", winners)
		}
		if busy != callers-1 {
			t.Fatalf("expected %d busy, got %d", callers-1, busy)
		}
	})

	t.Run("acquire succeeds after lease expires without release", func(t *testing.T) {
		repo := testutil.NewFakeRepository()

		early := NewLockManager(repo, clock.NewFixed(now), 5*time.Minute, logger.NewNop())
		if _, err := early.Acquire("orders"); err != nil {
			t.Fatalf("initial acquire failed: %v", err)
		}

		during := NewLockManager(repo, clock.NewFixed(now.Add(4*time.Minute)), 5*time.Minute, logger.NewNop())
		if _, err := during.Acquire("orders"); !errors.Is(err, models.ErrLockBusy) {
			t.Fatalf("expected ErrLockBusy inside lease, got %v", err)
		}

		later := NewLockManager(repo, clock.NewFixed(now.Add(6*time.Minute)), 5*time.Minute, logger.NewNop())
		if _, err := later.Acquire("orders"); err != nil {
			t.Fatalf("expected acquire to succeed after lease expiry, got %v", err)
		}
	})

	t.Run("release with wrong token fails and keeps the lock", func(t *testing.T) {
		repo := testutil.NewFakeRepository()
		locks := NewLockManager(repo, clock.NewFixed(now), 5*time.Minute, logger.NewNop())

		token, err := locks.Acquire("orders")
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}

		if err := locks.Release("orders", "stale-token"); !errors.Is(err, models.ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}

		holder, err := locks.Holder("orders")
		if err != nil {
			t.Fatalf("holder lookup failed: %v", err)
		}
		if holder == nil || holder.OwnerToken != token {
			t.Fatalf("expected lock still held by %s, got %+v", token, holder)
		}
	})

	t.Run("force reset clears a held lock", func(t *testing.T) {
		repo := testutil.NewFakeRepository()
		locks := NewLockManager(repo, clock.NewFixed(now), 5*time.Minute, logger.NewNop())

		if _, err := locks.Acquire("orders"); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		if err := locks.ForceReset("orders", "key:abcd1234@127.0.0.1"); err != nil {
			t.Fatalf("force reset failed: %v", err)
		}
		if _, err := locks.Acquire("orders"); err != nil {
			t.Fatalf("expected acquire to succeed after reset, got %v", err)
		}
	})
}

func TestSyncerForceSync(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("commits run, advances cursor, releases lock", func(t *testing.T) {
		repo := testutil.NewFakeRepository()
		shop := &fakePlatform{pages: map[string][]*models.PlatformPage{
			"orders": {
				{Records: records("orders", 3, now.Add(-time.Hour)), HasNext: true, NextPage: 2},
				{Records: records("orders", 2, now.Add(-time.Minute))},
			},
		}}
		alerts := &fakeAlerts{}
		s := newTestSyncer(repo, shop, alerts, clock.NewFixed(now))

		run, err := s.ForceSync(context.Background(), "orders")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if run.Status != models.RunStatusCommitted {
			t.Fatalf("expected committed run, got %s", run.Status)
		}
		if run.Fetched != 5 || run.Upserted != 5 {
			t.Fatalf("expected 5 fetched and upserted, got %d/%d", run.Fetched, run.Upserted)
		}

		cursor, err := repo.GetCursor("orders")
		if err != nil {
			t.Fatalf("cursor read failed: %v", err)
		}
		if !cursor.LastSyncedAt.Equal(now) {
			t.Fatalf("expected cursor at fetch start %v, got %v", now, cursor.LastSyncedAt)
		}
		if cursor.LastStatus != models.CursorStatusSynced {
			t.Fatalf("expected synced status, got %s", cursor.LastStatus)
		}

		if lock, _ := repo.GetLock(ResourceKey("orders"), now); lock != nil {
			t.Fatalf("expected lock released, still held by %s", lock.OwnerToken)
		}
		if alerts.count() != 0 {
			t.Fatalf("expected no alerts, got %d", alerts.count())
		}
	})

	t.Run("returns busy while another run holds the lock", func(t *testing.T) {
		repo := testutil.NewFakeRepository()
		alerts := &fakeAlerts{}
		s := newTestSyncer(repo, &fakePlatform{}, alerts, clock.NewFixed(now))

		if _, err := s.locks.Acquire("orders"); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}

		_, err := s.ForceSync(context.Background(), "orders")
		if !errors.Is(err, models.ErrLockBusy) {
			t.Fatalf("expected ErrLockBusy, got %v", err)
		}
	})

	t.Run("failure midway keeps cursor and retry converges", func(t *testing.T) {
		repo := testutil.NewFakeRepository()
		seeded := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		if err := repo.AdvanceCursor("products", seeded, models.CursorStatusSynced); err != nil {
			t.Fatalf("seed cursor failed: %v", err)
		}

		shop := &fakePlatform{
			pages: map[string][]*models.PlatformPage{
				"products": {
					{Records: records("products", 3, now), HasNext: true, NextPage: 2},
					{Records: records("products", 7, now)},
				},
			},
			failOnPage: 2,
		}
		alerts := &fakeAlerts{}
		s := newTestSyncer(repo, shop, alerts, clock.NewFixed(now))

		run, err := s.ForceSync(context.Background(), "products")
		if !errors.Is(err, models.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if run.Status != models.RunStatusFailed {
			t.Fatalf("expected failed run, got %s", run.Status)
		}

		// Cursor stays at the old watermark.
		cursor, err := repo.GetCursor("products")
		if err != nil {
			t.Fatalf("cursor read failed: %v", err)
		}
		if !cursor.LastSyncedAt.Equal(seeded) {
			t.Fatalf("expected cursor unchanged at %v, got %v", seeded, cursor.LastSyncedAt)
		}
		// Lock released, failed run does not starve the next one.
		if lock, _ := repo.GetLock(ResourceKey("products"), now); lock != nil {
			t.Fatalf("expected lock released after failure")
		}
		// Partial writes stayed.
		if len(repo.Records) != 3 {
			t.Fatalf("expected 3 partial records, got %d", len(repo.Records))
		}

		// Retry re-fetches from the old watermark and converges on all 10.
		shop.mu.Lock()
		shop.failOnPage = 0
		shop.mu.Unlock()

		run, err = s.ForceSync(context.Background(), "products")
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if run.Fetched != 10 {
			t.Fatalf("expected retry to fetch all 10, got %d", run.Fetched)
		}
		if len(repo.Records) != 10 {
			t.Fatalf("expected 10 records without duplication, got %d", len(repo.Records))
		}

		shop.mu.Lock()
		last := shop.watermarks[len(shop.watermarks)-1]
		shop.mu.Unlock()
		if !last.Equal(seeded) {
			t.Fatalf("expected retry watermark %v, got %v", seeded, last)
		}
	})

	t.Run("collections reconcile independently", func(t *testing.T) {
		repo := testutil.NewFakeRepository()
		shop := &fakePlatform{pages: map[string][]*models.PlatformPage{
			"orders":  {{Records: records("orders", 1, now)}},
			"coupons": {{Records: records("coupons", 1, now)}},
		}}
		s := newTestSyncer(repo, shop, &fakeAlerts{}, clock.NewFixed(now))

		if _, err := s.locks.Acquire("orders"); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}
		// The orders lock does not block a coupons run.
		if _, err := s.ForceSync(context.Background(), "coupons"); err != nil {
			t.Fatalf("expected coupons run to proceed, got %v", err)
		}
	})
}

func TestCursorIsMonotonic(t *testing.T) {
	t.Parallel()

	repo := testutil.NewFakeRepository()
	t1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)

	if err := repo.AdvanceCursor("orders", t1, models.CursorStatusSynced); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	// A late out-of-order run must not rewind the watermark.
	if err := repo.AdvanceCursor("orders", t0, models.CursorStatusSynced); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	cursor, err := repo.GetCursor("orders")
	if err != nil {
		t.Fatalf("cursor read failed: %v", err)
	}
	if !cursor.LastSyncedAt.Equal(t1) {
		t.Fatalf("expected cursor to stay at %v, got %v", t1, cursor.LastSyncedAt)
	}
}
