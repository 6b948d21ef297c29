package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

const (
	// RequestTimeout bounds a single page fetch.
	RequestTimeout = 30 * time.Second
	// PageSize is the per_page value requested from the platform.
	PageSize = 200
)

// NuvemShop is a client for the NuvemShop (Tiendanube) store API.
// Entities are fetched incrementally with an updated_at_min watermark and
// page-number pagination.
type NuvemShop struct {
	logger *logger.Logger

	baseURL     string
	storeID     string
	accessToken string
	client      *http.Client
}

// NewNuvemShop creates a new NuvemShop client instance.
func NewNuvemShop(baseURL, storeID, accessToken string, logger *logger.Logger) *NuvemShop {
	return &NuvemShop{
		logger:      logger,
		baseURL:     baseURL,
		storeID:     storeID,
		accessToken: accessToken,
		client: &http.Client{
			Timeout: RequestTimeout,
		},
	}
}

// entityEnvelope is the subset of a platform entity the sync cares about.
// The full body is mirrored verbatim as the record payload.
type entityEnvelope struct {
	ID        json.Number `json:"id"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FetchUpdatedSince returns one page of collection entities modified at or
// after the watermark.
func (n *NuvemShop) FetchUpdatedSince(ctx context.Context, collection string, watermark time.Time, page int) (*models.PlatformPage, error) {
	if page < 1 {
		page = 1
	}

	endpoint := fmt.Sprintf("%s/%s/%s", n.baseURL, n.storeID, collection)
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(PageSize))
	query.Set("page", strconv.Itoa(page))
	if !watermark.IsZero() {
		query.Set("updated_at_min", watermark.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build platform request: %w", err)
	}
	req.Header.Set("Authentication", "bearer "+n.accessToken)
	req.Header.Set("User-Agent", "nuvemsync")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	// The platform answers 404 for an empty-collection page on some endpoints.
	if resp.StatusCode == http.StatusNotFound {
		return &models.PlatformPage{}, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s page: %w", collection, err)
	}

	now := time.Now().UTC()
	records := make([]*models.PlatformRecord, 0, len(raw))
	for _, body := range raw {
		var envelope entityEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			n.logger.Error("Failed to decode platform entity", "collection", collection, "error", err)
			continue
		}
		if envelope.ID.String() == "" {
			n.logger.Error("Platform entity without id skipped", "collection", collection)
			continue
		}
		records = append(records, &models.PlatformRecord{
			Collection: collection,
			ExternalID: envelope.ID.String(),
			Payload:    string(body),
			UpdatedAt:  envelope.UpdatedAt.UTC(),
			SyncedAt:   now,
		})
	}

	result := &models.PlatformPage{Records: records}
	if len(raw) == PageSize {
		result.HasNext = true
		result.NextPage = page + 1
	}

	n.logger.Debug("Fetched platform page ", "collection ", collection, " page ", page, " records ", len(records))
	return result, nil
}
