package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/storebridge/erpsync/internal/platform/webhook"
	"github.com/storebridge/erpsync/internal/services"
)

type fakeOrderSyncService struct {
	syncCalls   []services.SyncOrderCommand
	cancelCalls []services.CancelOrderCommand
	syncErr     error
}

func (f *fakeOrderSyncService) SyncOrder(_ context.Context, cmd services.SyncOrderCommand) (services.SyncOrderResult, error) {
	f.syncCalls = append(f.syncCalls, cmd)
	if f.syncErr != nil {
		return services.SyncOrderResult{}, f.syncErr
	}
	return services.SyncOrderResult{Outcome: services.SyncOutcomeCreated, SalesOrder: "SO-SHOP-0001"}, nil
}

func (f *fakeOrderSyncService) CancelOrder(_ context.Context, cmd services.CancelOrderCommand) (services.CancelOrderResult, error) {
	f.cancelCalls = append(f.cancelCalls, cmd)
	return services.CancelOrderResult{SalesOrder: "SO-SHOP-0001", Cancelled: true}, nil
}

func (f *fakeOrderSyncService) BackfillOrders(context.Context, services.BackfillOrdersCommand) (services.BackfillOrdersResult, error) {
	return services.BackfillOrdersResult{}, nil
}

func encodeJob(t *testing.T, msg webhook.SyncJobMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return data
}

func TestSyncJobHandler_RoutesSync(t *testing.T) {
	svc := &fakeOrderSyncService{}
	handler, err := NewSyncJobHandler(svc, nil)
	if err != nil {
		t.Fatalf("NewSyncJobHandler error: %v", err)
	}

	data := encodeJob(t, webhook.SyncJobMessage{
		RequestID: "req_1",
		Kind:      webhook.JobKindOrderSync,
		Topic:     "orders/create",
		Payload:   json.RawMessage(`{"id":5001,"name":"#1042"}`),
	})
	if err := handler.Handle(context.Background(), data); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	if len(svc.syncCalls) != 1 {
		t.Fatalf("sync calls = %d", len(svc.syncCalls))
	}
	cmd := svc.syncCalls[0]
	if cmd.RequestID != "req_1" {
		t.Fatalf("request id = %q", cmd.RequestID)
	}
	if cmd.Order.ID != 5001 || cmd.Order.Name != "#1042" {
		t.Fatalf("decoded order = %+v", cmd.Order)
	}
}

func TestSyncJobHandler_RoutesCancel(t *testing.T) {
	svc := &fakeOrderSyncService{}
	handler, err := NewSyncJobHandler(svc, nil)
	if err != nil {
		t.Fatalf("NewSyncJobHandler error: %v", err)
	}

	data := encodeJob(t, webhook.SyncJobMessage{
		RequestID: "req_2",
		Kind:      webhook.JobKindOrderCancel,
		Topic:     "orders/cancelled",
		Payload:   json.RawMessage(`{"id":5001}`),
	})
	if err := handler.Handle(context.Background(), data); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if len(svc.cancelCalls) != 1 || svc.cancelCalls[0].Order.ID != 5001 {
		t.Fatalf("cancel calls = %+v", svc.cancelCalls)
	}
}

func TestSyncJobHandler_UnknownKind(t *testing.T) {
	handler, err := NewSyncJobHandler(&fakeOrderSyncService{}, nil)
	if err != nil {
		t.Fatalf("NewSyncJobHandler error: %v", err)
	}

	data := encodeJob(t, webhook.SyncJobMessage{
		Kind:    webhook.JobKind("inventory_sync"),
		Payload: json.RawMessage(`{}`),
	})
	if err := handler.Handle(context.Background(), data); !errors.Is(err, ErrUnknownJobKind) {
		t.Fatalf("expected ErrUnknownJobKind, got %v", err)
	}
}

func TestSyncJobHandler_BadPayload(t *testing.T) {
	handler, err := NewSyncJobHandler(&fakeOrderSyncService{}, nil)
	if err != nil {
		t.Fatalf("NewSyncJobHandler error: %v", err)
	}

	if err := handler.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSyncJobHandler_ServiceErrorPropagates(t *testing.T) {
	wantErr := errors.New("erp unavailable")
	handler, err := NewSyncJobHandler(&fakeOrderSyncService{syncErr: wantErr}, nil)
	if err != nil {
		t.Fatalf("NewSyncJobHandler error: %v", err)
	}

	data := encodeJob(t, webhook.SyncJobMessage{
		Kind:    webhook.JobKindOrderSync,
		Payload: json.RawMessage(`{"id":5001}`),
	})
	if err := handler.Handle(context.Background(), data); !errors.Is(err, wantErr) {
		t.Fatalf("expected service error, got %v", err)
	}
}
