package models

import (
	"context"
	"time"
)

// PlatformPage is one page of entities fetched from the commerce platform.
type PlatformPage struct {
	Records []*PlatformRecord
	// HasNext reports whether another page follows.
	HasNext bool
	// NextPage is the page number to request next when HasNext is true.
	NextPage int
}

// PlatformService represents the external commerce platform API.
type PlatformService interface {
	// FetchUpdatedSince returns one page of collection entities modified at or
	// after the watermark. Page numbering starts at 1.
	FetchUpdatedSince(ctx context.Context, collection string, watermark time.Time, page int) (*PlatformPage, error)
}
