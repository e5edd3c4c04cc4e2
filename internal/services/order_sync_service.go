package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/storebridge/erpsync/internal/domain"
	"github.com/storebridge/erpsync/internal/repositories"
)

const (
	defaultSalesOrderSeries = "SO-SHOP-"

	syncEventCreated   = "order.sync.created"
	syncEventSkipped   = "order.sync.skipped"
	syncEventMissing   = "order.sync.missing_items"
	syncEventMismatch  = "order.sync.total_mismatch"
	syncEventCancelled = "order.sync.cancelled"
)

// Financial status value on orders that are settled and ready to invoice.
const financialStatusPaid = "paid"

// ErrOrderSyncInvalidInput indicates a payload missing required fields.
var ErrOrderSyncInvalidInput = errors.New("order sync: invalid input")

// OrderSyncServiceDeps enumerates collaborators required to construct the service.
type OrderSyncServiceDeps struct {
	Store    DocumentStore
	Builder  *OrderBuilder
	Engine   *ReconciliationEngine
	SyncLogs repositories.SyncLogRepository
	Source   OrderSource
	Settings domain.SyncSettings
	Clock    func() time.Time
	IDGen    func() string
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type orderSyncService struct {
	store    DocumentStore
	builder  *OrderBuilder
	engine   *ReconciliationEngine
	syncLogs repositories.SyncLogRepository
	source   OrderSource
	settings domain.SyncSettings
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderSyncService wires dependencies into an OrderSyncService. Source may
// be nil when backfill is not configured.
func NewOrderSyncService(deps OrderSyncServiceDeps) (OrderSyncService, error) {
	if deps.Store == nil {
		return nil, errors.New("order sync: document store is required")
	}
	if deps.Builder == nil {
		return nil, errors.New("order sync: order builder is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("order sync: reconciliation engine is required")
	}
	if deps.SyncLogs == nil {
		return nil, errors.New("order sync: sync log repository is required")
	}
	if err := deps.Settings.Validate(); err != nil {
		return nil, err
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

	return &orderSyncService{
		store:    deps.Store,
		builder:  deps.Builder,
		engine:   deps.Engine,
		syncLogs: deps.SyncLogs,
		source:   deps.Source,
		settings: deps.Settings,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

var _ OrderSyncService = (*orderSyncService)(nil)

func (s *orderSyncService) SyncOrder(ctx context.Context, cmd SyncOrderCommand) (SyncOrderResult, error) {
	order := cmd.Order
	if order.ID == 0 {
		return SyncOrderResult{}, fmt.Errorf("%w: order id is required", ErrOrderSyncInvalidInput)
	}
	externalID := order.ExternalID()

	if existing, err := s.store.FindSalesOrder(ctx, externalID); err == nil {
		s.recordLog(ctx, cmd.RequestID, order, domain.SyncStatusInvalid, "sales order already exists, not synced")
		s.logger(ctx, syncEventSkipped, map[string]any{"orderId": externalID, "salesOrder": existing.Name})
		return SyncOrderResult{Outcome: SyncOutcomeSkipped, SalesOrder: existing.Name}, nil
	} else if !isRepoNotFound(err) {
		return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: lookup sales order: %w", err))
	}

	built, err := s.builder.BuildItems(ctx, order)
	if err != nil {
		return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, err)
	}
	if len(built.MissingSKUs) > 0 {
		message := fmt.Sprintf("items missing in the catalog, order not synced: %v", built.MissingSKUs)
		s.recordLog(ctx, cmd.RequestID, order, domain.SyncStatusError, message)
		s.logger(ctx, syncEventMissing, map[string]any{"orderId": externalID, "skus": built.MissingSKUs})
		return SyncOrderResult{Outcome: SyncOutcomeMissingItems, MissingSKUs: built.MissingSKUs}, nil
	}

	reconciliation, err := s.engine.Reconcile(order)
	if err != nil {
		return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, err)
	}

	items, taxes, err := s.builder.BuildCharges(ctx, order, built.Items)
	if err != nil {
		return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, err)
	}

	draft, err := s.buildDraft(ctx, order, items, taxes)
	if err != nil {
		return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, err)
	}

	ref, err := s.store.CreateSalesOrder(ctx, draft)
	if err != nil {
		return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: create sales order: %w", err))
	}

	result := SyncOrderResult{
		Outcome:        SyncOutcomeCreated,
		SalesOrder:     ref.Name,
		Reconciliation: reconciliation,
	}

	if reconciliation.Match {
		if err := s.store.SubmitSalesOrder(ctx, ref.Name); err != nil {
			return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: submit %s: %w", ref.Name, err))
		}
		result.Submitted = true

		if order.FinancialStatus == financialStatusPaid {
			invoice, err := s.store.CreateSalesInvoice(ctx, ref.Name, externalID)
			if err != nil {
				return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: create invoice for %s: %w", ref.Name, err))
			}
			result.InvoiceCreated = invoice
		}
	} else {
		comment := fmt.Sprintf("Order total mismatch: computed %.2f, storefront reported %.2f", reconciliation.GrandTotal, reconciliation.ReportedTotal)
		if err := s.store.AddOrderComment(ctx, ref.Name, comment); err != nil {
			return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: annotate %s: %w", ref.Name, err))
		}
		s.logger(ctx, syncEventMismatch, map[string]any{
			"orderId":    externalID,
			"salesOrder": ref.Name,
			"computed":   reconciliation.GrandTotal,
			"reported":   reconciliation.ReportedTotal,
		})
	}

	if order.Note != "" {
		if err := s.store.AddOrderComment(ctx, ref.Name, "Order Note: "+order.Note); err != nil {
			return SyncOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: note comment on %s: %w", ref.Name, err))
		}
	}

	s.recordLog(ctx, cmd.RequestID, order, domain.SyncStatusSuccess, "")
	s.logger(ctx, syncEventCreated, map[string]any{
		"orderId":    externalID,
		"salesOrder": ref.Name,
		"submitted":  result.Submitted,
		"match":      reconciliation.Match,
	})

	return result, nil
}

func (s *orderSyncService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (CancelOrderResult, error) {
	order := cmd.Order
	if order.ID == 0 {
		return CancelOrderResult{}, fmt.Errorf("%w: order id is required", ErrOrderSyncInvalidInput)
	}
	externalID := order.ExternalID()
	status := order.FinancialStatus

	ref, err := s.store.FindSalesOrder(ctx, externalID)
	if err != nil {
		if isRepoNotFound(err) {
			s.recordLog(ctx, cmd.RequestID, order, domain.SyncStatusInvalid, "sales order does not exist")
			return CancelOrderResult{OrderNotFound: true}, nil
		}
		return CancelOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: lookup sales order: %w", err))
	}

	result := CancelOrderResult{SalesOrder: ref.Name}

	invoice, err := s.store.FindSalesInvoice(ctx, externalID)
	if err != nil && !isRepoNotFound(err) {
		return CancelOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: lookup invoice: %w", err))
	}
	notes, err := s.store.ListDeliveryNotes(ctx, externalID)
	if err != nil {
		return CancelOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: list delivery notes: %w", err))
	}

	if invoice != "" {
		if err := s.store.SetDocumentStatus(ctx, DoctypeSalesInvoice, invoice, status); err != nil {
			return CancelOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, err)
		}
		result.StatusUpdated = append(result.StatusUpdated, invoice)
	}
	for _, note := range notes {
		if err := s.store.SetDocumentStatus(ctx, DoctypeDeliveryNote, note, status); err != nil {
			return CancelOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, err)
		}
		result.StatusUpdated = append(result.StatusUpdated, note)
	}

	if invoice == "" && len(notes) == 0 && ref.Submitted {
		if err := s.store.CancelSalesOrder(ctx, ref.Name); err != nil {
			return CancelOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, fmt.Errorf("order sync: cancel %s: %w", ref.Name, err))
		}
		result.Cancelled = true
	} else {
		if err := s.store.SetDocumentStatus(ctx, DoctypeSalesOrder, ref.Name, status); err != nil {
			return CancelOrderResult{}, s.failWithLog(ctx, cmd.RequestID, order, err)
		}
		result.StatusUpdated = append(result.StatusUpdated, ref.Name)
	}

	s.recordLog(ctx, cmd.RequestID, order, domain.SyncStatusSuccess, "")
	s.logger(ctx, syncEventCancelled, map[string]any{
		"orderId":    externalID,
		"salesOrder": ref.Name,
		"cancelled":  result.Cancelled,
	})

	return result, nil
}

func (s *orderSyncService) BackfillOrders(ctx context.Context, cmd BackfillOrdersCommand) (BackfillOrdersResult, error) {
	if s.source == nil {
		return BackfillOrdersResult{}, errors.New("order sync: no order source configured")
	}
	if !cmd.To.After(cmd.From) {
		return BackfillOrdersResult{}, fmt.Errorf("%w: backfill window is empty", ErrOrderSyncInvalidInput)
	}

	var result BackfillOrdersResult

	err := s.source.FetchOrders(ctx, cmd.From, cmd.To, func(order domain.Order) error {
		result.Fetched++

		entry, err := s.syncLogs.Insert(ctx, domain.SyncLog{
			ID:        s.newID(),
			Method:    "orders/create",
			Status:    domain.SyncStatusQueued,
			OrderID:   order.ExternalID(),
			CreatedAt: s.clock(),
		})
		if err != nil {
			return err
		}

		syncResult, err := s.SyncOrder(ctx, SyncOrderCommand{Order: order, RequestID: entry.ID})
		if err != nil {
			result.Failed++
			s.logger(ctx, "order.backfill.failed", map[string]any{
				"orderId": order.ExternalID(),
				"error":   err.Error(),
			})
			return nil
		}

		switch syncResult.Outcome {
		case SyncOutcomeCreated:
			result.Synced++
		case SyncOutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("order sync: backfill fetch: %w", err)
	}

	return result, nil
}

func (s *orderSyncService) buildDraft(ctx context.Context, order domain.Order, items []domain.OrderItem, taxes []domain.TaxCharge) (domain.SalesOrderDraft, error) {
	customer := s.settings.DefaultCustomer
	if order.Customer != nil && order.Customer.ID != 0 {
		name, err := s.store.FindCustomer(ctx, strconv.FormatInt(order.Customer.ID, 10))
		if err != nil && !isRepoNotFound(err) {
			return domain.SalesOrderDraft{}, fmt.Errorf("order sync: lookup customer: %w", err)
		}
		if name != "" {
			customer = name
		}
	}

	series := s.settings.SalesOrderSeries
	if series == "" {
		series = defaultSalesOrderSeries
	}

	var shippingMethod string
	if len(order.ShippingLines) > 0 {
		shippingMethod = order.ShippingLines[0].Title
	}

	transactionDate := order.CreatedAt
	if transactionDate.IsZero() {
		transactionDate = s.clock()
	}

	deliveryDate := transactionDate
	if len(items) > 0 {
		deliveryDate = items[0].DeliveryDate
	}

	return domain.SalesOrderDraft{
		NamingSeries:        series,
		ExternalOrderID:     order.ExternalID(),
		ExternalOrderNumber: order.Name,
		Customer:            customer,
		Company:             s.settings.Company,
		TransactionDate:     transactionDate,
		DeliveryDate:        deliveryDate,
		ShippingMethod:      shippingMethod,
		SellingPriceList:    s.settings.SellingPriceList,
		Items:               items,
		Taxes:               taxes,
		ReportedTotal:       order.TotalPrice.Float64(),
	}, nil
}

// recordLog writes the outcome on the dispatch-time log entry, or creates a
// fresh entry when the call had no request id.
func (s *orderSyncService) recordLog(ctx context.Context, requestID string, order domain.Order, status domain.SyncStatus, message string) {
	var err error
	if requestID != "" {
		_, err = s.syncLogs.UpdateStatus(ctx, requestID, status, message)
	} else {
		_, err = s.syncLogs.Insert(ctx, domain.SyncLog{
			ID:        s.newID(),
			Status:    status,
			Message:   message,
			OrderID:   order.ExternalID(),
			CreatedAt: s.clock(),
		})
	}
	if err != nil {
		s.logger(ctx, "order.sync.log_write_failed", map[string]any{
			"orderId": order.ExternalID(),
			"error":   err.Error(),
		})
	}
}

func (s *orderSyncService) failWithLog(ctx context.Context, requestID string, order domain.Order, err error) error {
	s.recordLog(ctx, requestID, order, domain.SyncStatusError, err.Error())
	return err
}
