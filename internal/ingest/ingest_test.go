package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nuvemsync/nuvemsync/internal/clock"
	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/internal/testutil"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

const testSecret = "hush"

type fakeSyncService struct {
	mu       sync.Mutex
	triggers []string
}

func (f *fakeSyncService) ForceSync(_ context.Context, _ string) (*models.SyncRun, error) {
	return nil, nil
}

func (f *fakeSyncService) Trigger(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, collection)
}

func (f *fakeSyncService) ResetLock(_, _ string) error { return nil }

func (f *fakeSyncService) LastUpdate(_ string) (*models.SyncCursor, error) {
	return nil, models.ErrCursorNotFound
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func secretFor(source string) string {
	if source == "nuvemshop" {
		return testSecret
	}
	return ""
}

func newTestPipeline() (*Pipeline, *testutil.FakeRepository, *fakeSyncService) {
	repo := testutil.NewFakeRepository()
	syncService := &fakeSyncService{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewPipeline(repo, syncService, secretFor, clock.NewFixed(now), logger.NewNop())
	return p, repo, syncService
}

func TestPipelineIngest(t *testing.T) {
	t.Parallel()

	validBody := []byte(`{"event_id":"evt-100","store_id":123,"event":"order/created","id":456}`)

	t.Run("accepts a fresh signed delivery and hands off", func(t *testing.T) {
		p, repo, syncService := newTestPipeline()

		result, err := p.Ingest("orders", "nuvemshop", validBody, sign(validBody))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Duplicate {
			t.Fatal("expected fresh delivery")
		}
		if result.EventID != "evt-100" {
			t.Fatalf("expected event id evt-100, got %s", result.EventID)
		}

		event, ok := repo.Events["evt-100"]
		if !ok {
			t.Fatal("expected event row recorded")
		}
		if event.Status != models.EventStatusAccepted {
			t.Fatalf("expected accepted status, got %s", event.Status)
		}
		if event.Collection != "orders" || event.EntityID != "456" {
			t.Fatalf("unexpected event row %+v", event)
		}

		if len(syncService.triggers) != 1 || syncService.triggers[0] != "orders" {
			t.Fatalf("expected one orders trigger, got %v", syncService.triggers)
		}
	})

	t.Run("rejects missing or bad signatures", func(t *testing.T) {
		p, _, syncService := newTestPipeline()

		for _, signature := range []string{"", "not-hex", hex.EncodeToString([]byte("wrong"))} {
			_, err := p.Ingest("orders", "nuvemshop", validBody, signature)
			if !errors.Is(err, models.ErrUnauthorized) {
				t.Fatalf("signature %q: expected ErrUnauthorized, got %v", signature, err)
			}
		}
		if len(syncService.triggers) != 0 {
			t.Fatalf("expected no triggers, got %v", syncService.triggers)
		}
	})

	t.Run("rejects an unconfigured source", func(t *testing.T) {
		p, _, _ := newTestPipeline()

		_, err := p.Ingest("orders", "activecampaign", validBody, sign(validBody))
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects malformed payloads without retry semantics", func(t *testing.T) {
		p, _, syncService := newTestPipeline()

		cases := []string{
			`not json`,
			`{"store_id":123,"id":456}`,
			`{"event":"order/created","store_id":123}`,
			`{"event":"invoice/created","id":456}`,
			`{"event":"product/updated","id":456}`, // wrong collection for /orders
		}
		for _, body := range cases {
			_, err := p.Ingest("orders", "nuvemshop", []byte(body), sign([]byte(body)))
			if !errors.Is(err, models.ErrMalformedPayload) {
				t.Fatalf("body %q: expected ErrMalformedPayload, got %v", body, err)
			}
		}
		if len(syncService.triggers) != 0 {
			t.Fatalf("expected no triggers, got %v", syncService.triggers)
		}
	})

	t.Run("classifies a redelivery as duplicate with no handoff", func(t *testing.T) {
		p, repo, syncService := newTestPipeline()

		if _, err := p.Ingest("orders", "nuvemshop", validBody, sign(validBody)); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		result, err := p.Ingest("orders", "nuvemshop", validBody, sign(validBody))
		if err != nil {
			t.Fatalf("duplicate delivery must succeed, got %v", err)
		}
		if !result.Duplicate {
			t.Fatal("expected duplicate classification")
		}
		if len(syncService.triggers) != 1 {
			t.Fatalf("expected a single trigger, got %v", syncService.triggers)
		}
		if got := repo.Events["evt-100"].Status; got != models.EventStatusDuplicate {
			t.Fatalf("expected the audit row marked duplicate, got %s", got)
		}
	})

	t.Run("exactly one of concurrent identical deliveries triggers a run", func(t *testing.T) {
		p, _, syncService := newTestPipeline()

		const deliveries = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		duplicate := 0
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := p.Ingest("orders", "nuvemshop", validBody, sign(validBody))
				if err != nil {
					t.Errorf("delivery failed: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if result.Duplicate {
					duplicate++
				} else {
					fresh++
				}
			}()
		}
		wg.Wait()

		if fresh != 1 || duplicate != deliveries-1 {
			t.Fatalf("expected 1 fresh / %d duplicate, got %d/%d", deliveries-1, fresh, duplicate)
		}
		if len(syncService.triggers) != 1 {
			t.Fatalf("expected exactly one trigger, got %d", len(syncService.triggers))
		}
	})

	t.Run("falls back to body digest when the payload has no event id", func(t *testing.T) {
		p, _, _ := newTestPipeline()

		body := []byte(`{"store_id":123,"event":"order/updated","id":456}`)
		first, err := p.Ingest("orders", "nuvemshop", body, sign(body))
		if err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		second, err := p.Ingest("orders", "nuvemshop", body, sign(body))
		if err != nil {
			t.Fatalf("second delivery failed: %v", err)
		}
		if first.Duplicate || !second.Duplicate {
			t.Fatalf("expected digest-keyed dedup, got %v/%v", first.Duplicate, second.Duplicate)
		}
	})
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"order/created","id":1}`)

	if !VerifySignature(testSecret, body, sign(body)) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifySignature(testSecret, []byte("tampered"), sign(body)) {
		t.Fatal("expected tampered body to fail")
	}
	if VerifySignature("other-secret", body, sign(body)) {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifySignature(testSecret, body, "") {
		t.Fatal("expected empty signature to fail closed")
	}
}
