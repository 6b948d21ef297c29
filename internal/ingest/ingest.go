package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nuvemsync/nuvemsync/internal/clock"
	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
	"github.com/nuvemsync/nuvemsync/pkg/validation"
)

// SecretResolver returns the webhook shared secret for a source platform.
// Empty means the source is not configured.
type SecretResolver func(source string) string

// Pipeline authenticates and deduplicates inbound webhook deliveries before
// they reach the executor. The HTTP response never waits on a sync run.
type Pipeline struct {
	logger *logger.Logger

	repo      models.Repository
	syncer    models.SyncService
	secretFor SecretResolver
	clock     clock.Clock
}

// NewPipeline creates a new ingestion Pipeline instance
func NewPipeline(repo models.Repository, syncer models.SyncService, secretFor SecretResolver, clk clock.Clock, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		logger:    logger,
		repo:      repo,
		syncer:    syncer,
		secretFor: secretFor,
		clock:     clk,
	}
}

// Result reports how a delivery was handled. Duplicate deliveries are a
// success from the sender's point of view.
type Result struct {
	EventID   string
	EventType string
	Duplicate bool
}

// webhookPayload is the NuvemShop webhook body. EventID is the platform's
// delivery identifier where the source sends one; redeliveries of the same
// payload without one are keyed by the body digest instead.
type webhookPayload struct {
	EventID string      `json:"event_id"`
	StoreID json.Number `json:"store_id"`
	Event   string      `json:"event"`
	ID      json.Number `json:"id"`
}

// Ingest processes one webhook delivery: verify, parse, dedup, hand off.
func (p *Pipeline) Ingest(collection, source string, body []byte, signature string) (*Result, error) {
	secret := p.secretFor(source)
	if secret == "" {
		p.logger.Warn("Webhook for unconfigured source rejected ", "source ", source)
		return nil, models.ErrUnauthorized
	}
	if !VerifySignature(secret, body, signature) {
		p.logger.Warn("Webhook signature mismatch ", "collection ", collection, " source ", source)
		return nil, models.ErrUnauthorized
	}

	event, err := p.parse(collection, body)
	if err != nil {
		p.logger.Debug("Malformed webhook payload", "error", err)
		return nil, err
	}

	fresh, err := p.repo.RecordEventIfNew(event)
	if err != nil {
		return nil, err
	}
	if !fresh {
		// At-least-once senders must not be told to retry on duplicates. The
		// redelivery leaves no trace beyond the audit row's status.
		p.logger.Debug("Duplicate webhook delivery ", "event_id ", event.EventID)
		if err := p.repo.UpdateEventStatus(event.EventID, models.EventStatusDuplicate); err != nil {
			p.logger.Error("Failed to mark event as redelivered", "event_id", event.EventID, "error", err)
		}
		return &Result{EventID: event.EventID, EventType: event.EventType, Duplicate: true}, nil
	}

	p.syncer.Trigger(event.Collection)
	p.logger.Info("Webhook accepted ", "event_id ", event.EventID, " type ", event.EventType)
	return &Result{EventID: event.EventID, EventType: event.EventType}, nil
}

func (p *Pipeline) parse(collection string, body []byte) (*models.ProcessedEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrMalformedPayload, err)
	}
	if payload.Event == "" {
		return nil, fmt.Errorf("%w: missing event", models.ErrMalformedPayload)
	}
	if payload.ID.String() == "" {
		return nil, fmt.Errorf("%w: missing entity id", models.ErrMalformedPayload)
	}

	eventCollection, err := validation.CollectionForEvent(payload.Event)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrMalformedPayload, err)
	}
	if eventCollection != collection {
		return nil, fmt.Errorf("%w: event %q does not belong to collection %q", models.ErrMalformedPayload, payload.Event, collection)
	}

	eventID := strings.TrimSpace(payload.EventID)
	if eventID == "" {
		digest := sha256.Sum256(body)
		eventID = hex.EncodeToString(digest[:])
	}

	return &models.ProcessedEvent{
		EventID:    eventID,
		EventType:  payload.Event,
		Collection: eventCollection,
		EntityID:   payload.ID.String(),
		ReceivedAt: p.clock.Now(),
		Status:     models.EventStatusAccepted,
	}, nil
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw body against
// the shared secret. Fails closed on a missing or undecodable signature.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
