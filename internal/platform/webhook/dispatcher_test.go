package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
	"github.com/storebridge/erpsync/internal/platform/idempotency"
)

type fakePublisher struct {
	messages []SyncJobMessage
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg SyncJobMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, msg)
	return "srv-msg-1", nil
}

type fakeRecorder struct {
	entries []domain.SyncLog
	err     error
}

func (f *fakeRecorder) Insert(_ context.Context, entry domain.SyncLog) (domain.SyncLog, error) {
	if f.err != nil {
		return domain.SyncLog{}, f.err
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func newTestDispatcher(t *testing.T, publisher *fakePublisher, recorder *fakeRecorder) *Dispatcher {
	t.Helper()
	verifier, err := NewSignatureVerifier(staticSecret("shhh"), "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}
	seq := 0
	dispatcher, err := NewDispatcher(DispatcherDeps{
		Verifier:  verifier,
		Publisher: publisher,
		Dedupe:    idempotency.NewMemoryStore(),
		SyncLogs:  recorder,
		Clock:     func() time.Time { return time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC) },
		IDGen: func() string {
			seq++
			return "req_" + string(rune('0'+seq))
		},
	})
	if err != nil {
		t.Fatalf("NewDispatcher error: %v", err)
	}
	return dispatcher
}

func TestDispatcher_RoutesOrderCreate(t *testing.T) {
	publisher := &fakePublisher{}
	recorder := &fakeRecorder{}
	dispatcher := newTestDispatcher(t, publisher, recorder)

	body := []byte(`{"id":5001,"name":"#1042"}`)
	result, err := dispatcher.Dispatch(context.Background(), Delivery{
		Topic:     "orders/create",
		EventID:   "evt_1",
		Signature: signBody("shhh", body),
		Body:      body,
	})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}

	if result.Kind != JobKindOrderSync {
		t.Fatalf("kind = %q", result.Kind)
	}
	if result.Duplicate {
		t.Fatalf("first delivery must not be a duplicate")
	}
	if result.RequestID == "" {
		t.Fatalf("expected a request id")
	}

	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 sync log entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Status != domain.SyncStatusQueued {
		t.Fatalf("entry status = %q", entry.Status)
	}
	if entry.OrderID != "5001" {
		t.Fatalf("entry order id = %q", entry.OrderID)
	}
	if entry.Topic != "orders/create" || entry.EventID != "evt_1" {
		t.Fatalf("entry routing fields = %q/%q", entry.Topic, entry.EventID)
	}
	if entry.PayloadDigest == "" {
		t.Fatalf("expected a payload digest")
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if msg.RequestID != entry.ID {
		t.Fatalf("message request id = %q, want log id %q", msg.RequestID, entry.ID)
	}
	if string(msg.Payload) != string(body) {
		t.Fatalf("payload altered in transit")
	}
}

func TestDispatcher_RoutesCancellation(t *testing.T) {
	publisher := &fakePublisher{}
	dispatcher := newTestDispatcher(t, publisher, &fakeRecorder{})

	body := []byte(`{"id":5001}`)
	result, err := dispatcher.Dispatch(context.Background(), Delivery{
		Topic:     "orders/cancelled",
		EventID:   "evt_2",
		Signature: signBody("shhh", body),
		Body:      body,
	})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if result.Kind != JobKindOrderCancel {
		t.Fatalf("kind = %q", result.Kind)
	}
}

func TestDispatcher_UnknownTopic(t *testing.T) {
	publisher := &fakePublisher{}
	dispatcher := newTestDispatcher(t, publisher, &fakeRecorder{})

	body := []byte(`{"id":1}`)
	_, err := dispatcher.Dispatch(context.Background(), Delivery{
		Topic:     "products/update",
		Signature: signBody("shhh", body),
		Body:      body,
	})
	if !errors.Is(err, ErrUnknownTopic) {
		t.Fatalf("expected ErrUnknownTopic, got %v", err)
	}
	if len(publisher.messages) != 0 {
		t.Fatalf("nothing should be published for unknown topics")
	}
}

func TestDispatcher_RejectsBadSignature(t *testing.T) {
	publisher := &fakePublisher{}
	recorder := &fakeRecorder{}
	dispatcher := newTestDispatcher(t, publisher, recorder)

	body := []byte(`{"id":5001}`)
	_, err := dispatcher.Dispatch(context.Background(), Delivery{
		Topic:     "orders/create",
		EventID:   "evt_3",
		Signature: signBody("intruder", body),
		Body:      body,
	})
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	if len(publisher.messages) != 0 || len(recorder.entries) != 0 {
		t.Fatalf("rejected delivery must not enqueue or log")
	}
}

func TestDispatcher_DropsDuplicateEvent(t *testing.T) {
	publisher := &fakePublisher{}
	recorder := &fakeRecorder{}
	dispatcher := newTestDispatcher(t, publisher, recorder)

	body := []byte(`{"id":5001}`)
	delivery := Delivery{
		Topic:     "orders/create",
		EventID:   "evt_4",
		Signature: signBody("shhh", body),
		Body:      body,
	}

	if _, err := dispatcher.Dispatch(context.Background(), delivery); err != nil {
		t.Fatalf("first Dispatch error: %v", err)
	}
	result, err := dispatcher.Dispatch(context.Background(), delivery)
	if err != nil {
		t.Fatalf("second Dispatch error: %v", err)
	}

	if !result.Duplicate {
		t.Fatalf("expected duplicate result, got %+v", result)
	}
	if len(publisher.messages) != 1 || len(recorder.entries) != 1 {
		t.Fatalf("duplicate must not enqueue or log again: %d messages, %d entries", len(publisher.messages), len(recorder.entries))
	}
}

func TestDispatcher_MissingEventIDStillDispatches(t *testing.T) {
	publisher := &fakePublisher{}
	dispatcher := newTestDispatcher(t, publisher, &fakeRecorder{})

	body := []byte(`{"id":5001}`)
	delivery := Delivery{
		Topic:     "orders/create",
		Signature: signBody("shhh", body),
		Body:      body,
	}

	for i := 0; i < 2; i++ {
		result, err := dispatcher.Dispatch(context.Background(), delivery)
		if err != nil {
			t.Fatalf("Dispatch %d error: %v", i, err)
		}
		if result.Duplicate {
			t.Fatalf("deliveries without event id cannot be deduplicated")
		}
	}
	if len(publisher.messages) != 2 {
		t.Fatalf("expected both deliveries published, got %d", len(publisher.messages))
	}
}

func TestDispatcher_PublishFailure(t *testing.T) {
	wantErr := errors.New("queue unavailable")
	publisher := &fakePublisher{err: wantErr}
	dispatcher := newTestDispatcher(t, publisher, &fakeRecorder{})

	body := []byte(`{"id":5001}`)
	_, err := dispatcher.Dispatch(context.Background(), Delivery{
		Topic:     "orders/create",
		EventID:   "evt_5",
		Signature: signBody("shhh", body),
		Body:      body,
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected publish error, got %v", err)
	}
}
