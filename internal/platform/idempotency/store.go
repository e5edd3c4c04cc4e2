// Package idempotency deduplicates webhook deliveries. Storefront webhooks
// are retried aggressively, so every delivery reserves its event id before a
// job is enqueued; a second delivery with the same id finds the reservation
// and is dropped.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// DefaultTTL is the default duration that dedupe reservations are retained.
// Storefront retry schedules span roughly two days; anything older is a
// fresh delivery.
const DefaultTTL = 48 * time.Hour

// ErrEmptyKey is returned when a reservation is attempted without an event id.
var ErrEmptyKey = errors.New("idempotency: key is required")

// Store persists dedupe reservations keyed by delivery event id.
type Store interface {
	// Reserve records the key if it has not been seen within the TTL. The
	// boolean reports whether the reservation is new; false means the same
	// event was already accepted and the delivery should be dropped.
	Reserve(ctx context.Context, key string, now time.Time, ttl time.Duration) (bool, error)
	// CleanupExpired removes reservations past their expiry, up to limit.
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

func recordID(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}
