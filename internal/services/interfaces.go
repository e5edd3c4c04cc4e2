package services

import (
	"context"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
)

// Doctype names used when updating status fields on linked ERP documents.
const (
	DoctypeSalesOrder   = "Sales Order"
	DoctypeSalesInvoice = "Sales Invoice"
	DoctypeDeliveryNote = "Delivery Note"
)

// SalesOrderRef identifies an ERP sales order linked to a storefront order.
type SalesOrderRef struct {
	Name      string
	Submitted bool
	Status    string
}

// DocumentStore is the opaque ERP document API the sync pipeline writes to.
// Persistence, naming, permission, and submission semantics belong to the
// store; this package only hands it normalized drafts and follow-up actions.
type DocumentStore interface {
	FindCustomer(ctx context.Context, externalID string) (string, error)
	FindSalesOrder(ctx context.Context, externalID string) (SalesOrderRef, error)
	CreateSalesOrder(ctx context.Context, draft domain.SalesOrderDraft) (SalesOrderRef, error)
	SubmitSalesOrder(ctx context.Context, name string) error
	CancelSalesOrder(ctx context.Context, name string) error
	AddOrderComment(ctx context.Context, name string, text string) error
	SetDocumentStatus(ctx context.Context, doctype string, name string, status string) error
	FindSalesInvoice(ctx context.Context, externalID string) (string, error)
	ListDeliveryNotes(ctx context.Context, externalID string) ([]string, error)
	CreateSalesInvoice(ctx context.Context, orderName string, externalID string) (string, error)
}

// CatalogItem is the ERP catalog entry matching a storefront SKU.
type CatalogItem struct {
	Code        string
	Name        string
	Description string
	StockUOM    string
}

// Catalog resolves storefront SKUs against the ERP item master. A missing
// item surfaces as a repository not-found error.
type Catalog interface {
	ItemBySKU(ctx context.Context, sku string) (CatalogItem, error)
}

// PriceList looks up the selling rate for a catalog item. A missing entry
// returns 0 without error.
type PriceList interface {
	PriceListRate(ctx context.Context, itemCode string, priceList string) (float64, error)
}

// HolidayCalendar answers whether a calendar date is a holiday.
type HolidayCalendar interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

// OrderSource iterates historical storefront orders for backfill. The
// callback is invoked once per order; returning an error stops iteration.
type OrderSource interface {
	FetchOrders(ctx context.Context, from time.Time, to time.Time, fn func(domain.Order) error) error
}

// SyncOrderCommand carries one decoded order payload through the sync flow.
type SyncOrderCommand struct {
	Order     domain.Order
	RequestID string
}

// SyncOutcome classifies how a sync attempt ended.
type SyncOutcome string

const (
	// SyncOutcomeCreated means a sales order was created (and submitted when
	// the totals matched).
	SyncOutcomeCreated SyncOutcome = "created"
	// SyncOutcomeSkipped means the order already exists in the ERP.
	SyncOutcomeSkipped SyncOutcome = "skipped"
	// SyncOutcomeMissingItems means at least one SKU had no catalog entry and
	// the order was not created.
	SyncOutcomeMissingItems SyncOutcome = "missing_items"
)

// SyncOrderResult reports the outcome of one sync attempt.
type SyncOrderResult struct {
	Outcome        SyncOutcome
	SalesOrder     string
	Submitted      bool
	InvoiceCreated string
	MissingSKUs    []string
	Reconciliation domain.ReconciliationResult
}

// CancelOrderCommand carries an orders/cancelled payload.
type CancelOrderCommand struct {
	Order     domain.Order
	RequestID string
}

// CancelOrderResult reports which linked documents were touched.
type CancelOrderResult struct {
	SalesOrder    string
	Cancelled     bool
	StatusUpdated []string
	OrderNotFound bool
}

// BackfillOrdersCommand re-drives historical orders through the sync flow.
type BackfillOrdersCommand struct {
	From time.Time
	To   time.Time
}

// BackfillOrdersResult summarises a backfill run.
type BackfillOrdersResult struct {
	Fetched int
	Synced  int
	Skipped int
	Failed  int
}

// OrderSyncService drives storefront order payloads into ERP sales documents.
type OrderSyncService interface {
	SyncOrder(ctx context.Context, cmd SyncOrderCommand) (SyncOrderResult, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (CancelOrderResult, error)
	BackfillOrders(ctx context.Context, cmd BackfillOrdersCommand) (BackfillOrdersResult, error)
}
