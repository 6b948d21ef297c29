package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/pkg/validation"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
	SignatureHeader = "X-Linkedstore-Hmac-Sha256"
	// SignatureHeaderFallback is accepted for sources that use a generic header.
	SignatureHeaderFallback = "X-Webhook-Signature"
	// SourceQueryParam selects the webhook source platform (defaults to nuvemshop).
	SourceQueryParam = "source"
)

// WebhookResponse is returned to webhook senders on accept-or-duplicate.
type WebhookResponse struct {
	Success   bool   `json:"success"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// SyncResponse is the structured JSON for administrative callers.
type SyncResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// webhook is the handler for the /webhooks/:collection endpoint. It returns
// 200 on accept-or-duplicate; senders should retry on 500 only.
func (s *HTTPServer) webhook(c *gin.Context) {
	collection, err := validation.ValidateAndNormalizeCollection(c.Param("collection"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid collection: " + err.Error(),
		})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		s.logger.Debug("Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Failed to read request body",
		})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" {
		signature = c.GetHeader(SignatureHeaderFallback)
	}
	source := c.DefaultQuery(SourceQueryParam, "nuvemshop")

	result, err := s.pipeline.Ingest(collection, source, body, signature)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid webhook signature",
			})
		case errors.Is(err, models.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   err.Error(),
			})
		default:
			s.logger.Error("Webhook ingestion failed", "collection", collection, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Failed to process webhook",
			})
		}
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Success:   true,
		EventID:   result.EventID,
		Duplicate: result.Duplicate,
	})
}

// forceSync is the handler for the /sync/:collection/force endpoint. It runs
// a reconcile immediately and returns its statistics, or 409 when a run is
// already holding the lock.
func (s *HTTPServer) forceSync(c *gin.Context) {
	collection, err := validation.ValidateAndNormalizeCollection(c.Param("collection"))
	if err != nil {
		c.JSON(http.StatusBadRequest, SyncResponse{Success: false, Error: err.Error()})
		return
	}

	s.logger.Info("Force sync requested ", "collection ", collection, " actor ", s.actor(c))

	run, err := s.syncer.ForceSync(c.Request.Context(), collection)
	if err != nil {
		if errors.Is(err, models.ErrLockBusy) {
			// Show the caller which run is holding the lock.
			current, _ := s.repo.GetLastSyncRun(collection)
			c.JSON(http.StatusConflict, SyncResponse{
				Success: false,
				Error:   "A sync run is already in progress for this collection",
				Details: current,
			})
			return
		}
		s.logger.Error("Force sync failed", "collection", collection, "error", err)
		c.JSON(http.StatusInternalServerError, SyncResponse{
			Success: false,
			Error:   "Sync run failed",
			Details: run,
		})
		return
	}

	c.JSON(http.StatusOK, SyncResponse{Success: true, Details: run})
}

// resetLock is the handler for the /sync/:collection/lock/reset endpoint.
// It unconditionally clears a stuck lock.
func (s *HTTPServer) resetLock(c *gin.Context) {
	collection, err := validation.ValidateAndNormalizeCollection(c.Param("collection"))
	if err != nil {
		c.JSON(http.StatusBadRequest, SyncResponse{Success: false, Error: err.Error()})
		return
	}

	if err := s.syncer.ResetLock(collection, s.actor(c)); err != nil {
		s.logger.Error("Lock reset failed", "collection", collection, "error", err)
		c.JSON(http.StatusInternalServerError, SyncResponse{
			Success: false,
			Error:   "Failed to reset lock",
		})
		return
	}

	c.JSON(http.StatusOK, SyncResponse{
		Success: true,
		Details: gin.H{"collection": collection, "message": "Lock cleared"},
	})
}

// lastUpdate is the handler for the /sync/:collection/last-update endpoint.
// It returns the current cursor, or a null body if the collection has never
// been synced.
func (s *HTTPServer) lastUpdate(c *gin.Context) {
	collection, err := validation.ValidateAndNormalizeCollection(c.Param("collection"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cursor, err := s.syncer.LastUpdate(collection)
	if err != nil {
		if errors.Is(err, models.ErrCursorNotFound) {
			c.JSON(http.StatusOK, nil)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get cursor"})
		return
	}

	c.JSON(http.StatusOK, cursor)
}

// health reports liveness and storage reachability.
func (s *HTTPServer) health(c *gin.Context) {
	if err := s.repo.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
