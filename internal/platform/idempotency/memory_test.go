package idempotency

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_ReserveOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)

	reserved, err := store.Reserve(ctx, "evt_1", now, time.Hour)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if !reserved {
		t.Fatalf("first reservation should succeed")
	}

	reserved, err = store.Reserve(ctx, "evt_1", now.Add(time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if reserved {
		t.Fatalf("duplicate event must not be reserved again")
	}
}

func TestMemoryStore_ReserveAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)

	if _, err := store.Reserve(ctx, "evt_1", now, time.Hour); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	reserved, err := store.Reserve(ctx, "evt_1", now.Add(2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if !reserved {
		t.Fatalf("expired reservation should be reusable")
	}
}

func TestMemoryStore_ReserveEmptyKey(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Reserve(context.Background(), "", time.Now(), time.Hour); err != ErrEmptyKey {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestMemoryStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)

	for _, key := range []string{"evt_1", "evt_2", "evt_3"} {
		if _, err := store.Reserve(ctx, key, now, time.Hour); err != nil {
			t.Fatalf("Reserve error: %v", err)
		}
	}

	removed, err := store.CleanupExpired(ctx, now.Add(30*time.Minute), 0)
	if err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("nothing should expire before the TTL, removed %d", removed)
	}

	removed, err = store.CleanupExpired(ctx, now.Add(2*time.Hour), 2)
	if err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want limit of 2", removed)
	}

	removed, err = store.CleanupExpired(ctx, now.Add(2*time.Hour), 0)
	if err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want the remaining 1", removed)
	}
}
