package observability

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/storebridge/erpsync/internal/platform/requestctx"
)

func TestEventLoggerEmitsSortedFields(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	events := EventLogger(logger)
	events(context.Background(), "order.sync.created", map[string]any{
		"salesOrder": "SO-SHOP-0001",
		"orderId":    "5001",
		"outcome":    "synced",
	})

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "order.sync.created" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
	if len(entry.Context) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(entry.Context))
	}
	keys := make([]string, 0, len(entry.Context))
	for _, field := range entry.Context {
		keys = append(keys, field.Key)
	}
	want := "orderId,outcome,salesOrder"
	if got := strings.Join(keys, ","); got != want {
		t.Fatalf("expected field order %s, got %s", want, got)
	}
}

func TestEventLoggerIncludesRequestID(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := requestctx.WithRequestID(context.Background(), "req_42")
	EventLogger(logger)(ctx, "job.order_sync.done", map[string]any{"orderId": "5001"})

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["requestId"] != "req_42" {
		t.Fatalf("expected requestId field, got %#v", fields)
	}
}

func TestEventLoggerSanitizesStrings(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	EventLogger(logger)(context.Background(), "webhook.dispatched", map[string]any{
		"orderId": "5001\x00" + strings.Repeat("9", 100),
		"topic":   "orders/create\x1b[31m",
	})

	fields := recorded.All()[0].ContextMap()
	orderID, _ := fields["orderId"].(string)
	if strings.ContainsRune(orderID, 0) {
		t.Fatalf("control bytes not stripped: %q", orderID)
	}
	if len(orderID) > 64 {
		t.Fatalf("order id not truncated: %d bytes", len(orderID))
	}
	topic, _ := fields["topic"].(string)
	if strings.ContainsRune(topic, 0x1b) {
		t.Fatalf("escape byte not stripped: %q", topic)
	}
}

func TestEventLoggerPrefersContextLogger(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	scoped := zap.New(core)

	discardCore, discarded := observer.New(zap.InfoLevel)
	base := zap.New(discardCore)

	ctx := WithLogger(context.Background(), scoped)
	EventLogger(base)(ctx, "job.failed", nil)

	if recorded.Len() != 1 {
		t.Fatalf("expected scoped logger to receive the event, got %d", recorded.Len())
	}
	if discarded.Len() != 0 {
		t.Fatalf("expected base logger to stay quiet, got %d entries", discarded.Len())
	}
}
