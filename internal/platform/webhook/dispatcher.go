package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/storebridge/erpsync/internal/domain"
	"github.com/storebridge/erpsync/internal/platform/idempotency"
)

// JobKind selects the worker routine that handles a queued delivery.
type JobKind string

const (
	// JobKindOrderSync creates or updates the ERP sales document for an order.
	JobKindOrderSync JobKind = "order_sync"
	// JobKindOrderCancel propagates a storefront cancellation.
	JobKindOrderCancel JobKind = "order_cancel"
)

// topicKinds maps storefront webhook topics onto worker job kinds. Topics
// absent from the map are rejected at dispatch time.
var topicKinds = map[string]JobKind{
	"orders/create":    JobKindOrderSync,
	"orders/paid":      JobKindOrderSync,
	"orders/cancelled": JobKindOrderCancel,
}

// ErrUnknownTopic indicates a delivery for a topic this service does not handle.
var ErrUnknownTopic = errors.New("webhook: unknown topic")

// SyncJobMessage is the queue payload handed from the dispatcher to the
// worker. Payload carries the raw order document exactly as delivered.
type SyncJobMessage struct {
	RequestID string          `json:"requestId"`
	Kind      JobKind         `json:"kind"`
	Topic     string          `json:"topic"`
	EventID   string          `json:"eventId"`
	QueuedAt  time.Time       `json:"queuedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// JobPublisher enqueues sync jobs for asynchronous processing.
type JobPublisher interface {
	Publish(ctx context.Context, msg SyncJobMessage) (string, error)
}

// SyncLogRecorder records the dispatch-time audit entry. The worker updates
// the same entry with the outcome using the request id.
type SyncLogRecorder interface {
	Insert(ctx context.Context, entry domain.SyncLog) (domain.SyncLog, error)
}

// Delivery is one webhook request after transport decoding: the raw body and
// the verification headers.
type Delivery struct {
	Topic     string
	EventID   string
	Signature string
	Body      []byte
}

// DispatchResult reports what the dispatcher did with a delivery.
type DispatchResult struct {
	RequestID string
	Kind      JobKind
	Duplicate bool
}

// DispatcherDeps enumerates collaborators required to construct a Dispatcher.
type DispatcherDeps struct {
	Verifier  *SignatureVerifier
	Publisher JobPublisher
	Dedupe    idempotency.Store
	SyncLogs  SyncLogRecorder
	DedupeTTL time.Duration
	Clock     func() time.Time
	IDGen     func() string
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// Dispatcher validates incoming deliveries and turns them into queued jobs:
// verify the signature, drop duplicates by event id, record an audit entry,
// publish the job.
type Dispatcher struct {
	verifier  *SignatureVerifier
	publisher JobPublisher
	dedupe    idempotency.Store
	syncLogs  SyncLogRecorder
	dedupeTTL time.Duration
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewDispatcher wires dependencies into a Dispatcher.
func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Verifier == nil {
		return nil, errors.New("webhook: signature verifier is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("webhook: job publisher is required")
	}
	if deps.Dedupe == nil {
		return nil, errors.New("webhook: dedupe store is required")
	}
	if deps.SyncLogs == nil {
		return nil, errors.New("webhook: sync log recorder is required")
	}

	ttl := deps.DedupeTTL
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Dispatcher{
		verifier:  deps.Verifier,
		publisher: deps.Publisher,
		dedupe:    deps.Dedupe,
		syncLogs:  deps.SyncLogs,
		dedupeTTL: ttl,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Dispatch processes one delivery end to end. A nil error with
// Duplicate=true means the delivery was valid but already handled.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery Delivery) (DispatchResult, error) {
	kind, ok := topicKinds[delivery.Topic]
	if !ok {
		return DispatchResult{}, fmt.Errorf("%w: %q", ErrUnknownTopic, delivery.Topic)
	}

	if err := d.verifier.Verify(ctx, delivery.Body, delivery.Signature); err != nil {
		return DispatchResult{}, err
	}

	if delivery.EventID != "" {
		reserved, err := d.dedupe.Reserve(ctx, delivery.EventID, d.clock(), d.dedupeTTL)
		if err != nil {
			return DispatchResult{}, fmt.Errorf("webhook: dedupe reserve: %w", err)
		}
		if !reserved {
			d.logger(ctx, "webhook.duplicate", map[string]any{
				"topic":   delivery.Topic,
				"eventId": delivery.EventID,
			})
			return DispatchResult{Kind: kind, Duplicate: true}, nil
		}
	}

	digest := sha256.Sum256(delivery.Body)

	entry, err := d.syncLogs.Insert(ctx, domain.SyncLog{
		ID:            d.newID(),
		Method:        delivery.Topic,
		Status:        domain.SyncStatusQueued,
		OrderID:       orderIDFromPayload(delivery.Body),
		Topic:         delivery.Topic,
		EventID:       delivery.EventID,
		PayloadDigest: hex.EncodeToString(digest[:]),
		CreatedAt:     d.clock(),
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("webhook: record sync log: %w", err)
	}

	msg := SyncJobMessage{
		RequestID: entry.ID,
		Kind:      kind,
		Topic:     delivery.Topic,
		EventID:   delivery.EventID,
		QueuedAt:  d.clock(),
		Payload:   append(json.RawMessage(nil), delivery.Body...),
	}
	if _, err := d.publisher.Publish(ctx, msg); err != nil {
		return DispatchResult{}, fmt.Errorf("webhook: publish job: %w", err)
	}

	d.logger(ctx, "webhook.dispatched", map[string]any{
		"topic":     delivery.Topic,
		"eventId":   delivery.EventID,
		"requestId": entry.ID,
		"kind":      string(kind),
	})

	return DispatchResult{RequestID: entry.ID, Kind: kind}, nil
}

// orderIDFromPayload extracts the storefront order id for the audit entry.
// A payload without one still dispatches; the log just lacks the reference.
func orderIDFromPayload(body []byte) string {
	var probe struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.ID == 0 {
		return ""
	}
	return strconv.FormatInt(probe.ID, 10)
}
