package validation

import (
	"fmt"
	"strings"
)

// knownCollections are the entity collections the platform exposes for sync.
var knownCollections = map[string]struct{}{
	"orders":    {},
	"products":  {},
	"coupons":   {},
	"customers": {},
}

// ValidateCollection validates an entity collection name
func ValidateCollection(collection string) error {
	if collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	if _, ok := knownCollections[strings.ToLower(collection)]; !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	return nil
}

// NormalizeCollection converts a collection name to its canonical lowercase form
func NormalizeCollection(collection string) string {
	return strings.ToLower(strings.TrimSpace(collection))
}

// ValidateAndNormalizeCollection validates a collection name and returns its normalized form
func ValidateAndNormalizeCollection(collection string) (string, error) {
	normalized := NormalizeCollection(collection)
	if err := ValidateCollection(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// CollectionForEvent maps a platform event type like "order/created" to its
// entity collection.
func CollectionForEvent(eventType string) (string, error) {
	prefix, _, found := strings.Cut(eventType, "/")
	if !found {
		return "", fmt.Errorf("invalid event type %q", eventType)
	}
	switch strings.ToLower(prefix) {
	case "order":
		return "orders", nil
	case "product":
		return "products", nil
	case "coupon":
		return "coupons", nil
	case "customer":
		return "customers", nil
	}
	return "", fmt.Errorf("unknown event type %q", eventType)
}
