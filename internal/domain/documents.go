package domain

import "time"

// OrderItem is one normalized sales-order line handed to the ERP document
// store. Rate is the per-unit net price after discount (and tax, when the
// order's prices are tax inclusive); ReportedRate is the storefront's
// original per-unit price kept for reconciliation.
type OrderItem struct {
	ItemCode        string
	ItemName        string
	Description     string
	Rate            float64
	ReportedRate    float64
	Quantity        int
	DeliveryDate    time.Time
	StockUOM        string
	Warehouse       string
	DiscountPerUnit float64
}

// TaxCharge is one normalized tax or charge row on the sales order.
type TaxCharge struct {
	ChargeType  string
	AccountHead string
	Description string
	TaxAmount   float64
	CostCenter  string
	RatePercent float64
}

// SalesOrderDraft is the document shape handed to the ERP document store for
// creation. The store owns persistence, naming, and submission semantics.
type SalesOrderDraft struct {
	NamingSeries        string
	ExternalOrderID     string
	ExternalOrderNumber string
	Customer            string
	Company             string
	TransactionDate     time.Time
	DeliveryDate        time.Time
	ShippingMethod      string
	SellingPriceList    string
	Items               []OrderItem
	Taxes               []TaxCharge
	ReportedTotal       float64
}

// ReconciliationResult is the engine's verdict on one order: computed
// subtotal, shipping, per-title taxes, the grand total, and whether it agrees
// with the storefront-reported total within currency rounding.
type ReconciliationResult struct {
	Subtotal      float64
	ShippingTotal float64
	Taxes         map[string]float64
	GrandTotal    float64
	ReportedTotal float64
	Match         bool
}

// TaxTotal sums the per-title tax amounts.
func (r ReconciliationResult) TaxTotal() float64 {
	var total float64
	for _, amount := range r.Taxes {
		total += amount
	}
	return total
}
