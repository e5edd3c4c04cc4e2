package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/storebridge/erpsync/internal/domain"
	"github.com/storebridge/erpsync/internal/platform/requestctx"
	"github.com/storebridge/erpsync/internal/platform/webhook"
	"github.com/storebridge/erpsync/internal/services"
)

// ErrUnknownJobKind indicates a queued message for a kind this worker does not handle.
var ErrUnknownJobKind = errors.New("jobs: unknown job kind")

// SyncJobHandler executes queued sync jobs against the order sync service.
type SyncJobHandler struct {
	orders services.OrderSyncService
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewSyncJobHandler constructs a handler around the sync service.
func NewSyncJobHandler(orders services.OrderSyncService, logger func(ctx context.Context, event string, fields map[string]any)) (*SyncJobHandler, error) {
	if orders == nil {
		return nil, errors.New("jobs: order sync service is required")
	}
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &SyncJobHandler{orders: orders, logger: logger}, nil
}

// Handle decodes one queued message and routes it by kind.
func (h *SyncJobHandler) Handle(ctx context.Context, data []byte) error {
	var msg webhook.SyncJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("jobs: decode message: %w", err)
	}

	var order domain.Order
	if err := json.Unmarshal(msg.Payload, &order); err != nil {
		return fmt.Errorf("jobs: decode order payload: %w", err)
	}

	ctx = requestctx.WithRequestID(ctx, msg.RequestID)

	switch msg.Kind {
	case webhook.JobKindOrderSync:
		result, err := h.orders.SyncOrder(ctx, services.SyncOrderCommand{Order: order, RequestID: msg.RequestID})
		if err != nil {
			return err
		}
		h.logger(ctx, "job.order_sync.done", map[string]any{
			"requestId":  msg.RequestID,
			"orderId":    order.ExternalID(),
			"outcome":    string(result.Outcome),
			"salesOrder": result.SalesOrder,
		})
		return nil
	case webhook.JobKindOrderCancel:
		result, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{Order: order, RequestID: msg.RequestID})
		if err != nil {
			return err
		}
		h.logger(ctx, "job.order_cancel.done", map[string]any{
			"requestId":  msg.RequestID,
			"orderId":    order.ExternalID(),
			"cancelled":  result.Cancelled,
			"salesOrder": result.SalesOrder,
		})
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobKind, msg.Kind)
	}
}
