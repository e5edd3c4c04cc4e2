package services

import (
	"errors"
	"fmt"

	domain "github.com/storebridge/erpsync/internal/domain"
)

// ErrReconciliationInvalidInput signals malformed or out-of-range order data
// such as negative prices, quantities, discounts, or tax rates.
var ErrReconciliationInvalidInput = errors.New("reconciliation: invalid input")

// ReconciliationEngine recomputes an order's totals from its raw lines and
// compares them with the storefront-reported total. It is pure arithmetic:
// no I/O, no retained state, each call independent.
type ReconciliationEngine struct{}

// NewReconciliationEngine constructs the engine.
func NewReconciliationEngine() *ReconciliationEngine {
	return &ReconciliationEngine{}
}

// Subtotal sums (unit price x quantity - line discounts) over the line items,
// rounded to 2 decimal places.
func (e *ReconciliationEngine) Subtotal(lineItems []domain.LineItem) (float64, error) {
	var subtotal float64

	for idx, item := range lineItems {
		price := item.Price.Float64()
		if price < 0 {
			return 0, fmt.Errorf("%w: line %d has negative price %v", ErrReconciliationInvalidInput, idx, price)
		}
		if item.Quantity < 0 {
			return 0, fmt.Errorf("%w: line %d has negative quantity %d", ErrReconciliationInvalidInput, idx, item.Quantity)
		}
		discount := item.TotalDiscount()
		if discount < 0 {
			return 0, fmt.Errorf("%w: line %d has negative discount %v", ErrReconciliationInvalidInput, idx, discount)
		}

		subtotal += price*float64(item.Quantity) - discount
	}

	return domain.Round2(subtotal), nil
}

// ShippingTotal sums shipping line prices, rounded to 2 decimal places.
// Shipping discounts are intentionally not netted here; they are applied when
// a shipping charge is folded into an item or a ledger row.
func (e *ReconciliationEngine) ShippingTotal(shippingLines []domain.ShippingLine) (float64, error) {
	var total float64

	for idx, line := range shippingLines {
		price := line.Price.Float64()
		if price < 0 {
			return 0, fmt.Errorf("%w: shipping line %d has negative price %v", ErrReconciliationInvalidInput, idx, price)
		}
		total += price
	}

	return domain.Round2(total), nil
}

// Taxes applies each order-level tax rate to the whole order amount
// (subtotal + shipping) and returns a mapping keyed by tax title. Duplicate
// titles overwrite earlier entries; zero-rate lines still appear with a zero
// amount.
func (e *ReconciliationEngine) Taxes(lineItems []domain.LineItem, shippingLines []domain.ShippingLine, taxLines []domain.TaxLine) (map[string]float64, error) {
	subtotal, err := e.Subtotal(lineItems)
	if err != nil {
		return nil, err
	}
	shipping, err := e.ShippingTotal(shippingLines)
	if err != nil {
		return nil, err
	}

	totalAmount := subtotal + shipping
	if totalAmount < 0 {
		return nil, fmt.Errorf("%w: order total %v is negative", ErrReconciliationInvalidInput, totalAmount)
	}

	taxes := make(map[string]float64, len(taxLines))
	for idx, tax := range taxLines {
		if tax.Rate < 0 {
			return nil, fmt.Errorf("%w: tax line %d (%s) has negative rate %v", ErrReconciliationInvalidInput, idx, tax.Title, tax.Rate)
		}
		taxes[tax.Title] = totalAmount * tax.Rate
	}

	return taxes, nil
}

// Reconcile computes the full breakdown for an order and flags whether the
// computed grand total agrees with the reported total within 2-decimal
// currency rounding. A mismatch is a first-class outcome, not an error.
func (e *ReconciliationEngine) Reconcile(order domain.Order) (domain.ReconciliationResult, error) {
	subtotal, err := e.Subtotal(order.LineItems)
	if err != nil {
		return domain.ReconciliationResult{}, err
	}
	shipping, err := e.ShippingTotal(order.ShippingLines)
	if err != nil {
		return domain.ReconciliationResult{}, err
	}
	taxes, err := e.Taxes(order.LineItems, order.ShippingLines, order.TaxLines)
	if err != nil {
		return domain.ReconciliationResult{}, err
	}

	var taxTotal float64
	for _, amount := range taxes {
		taxTotal += amount
	}

	result := domain.ReconciliationResult{
		Subtotal:      subtotal,
		ShippingTotal: shipping,
		Taxes:         taxes,
		GrandTotal:    domain.Round2(subtotal + shipping + taxTotal),
		ReportedTotal: domain.Round2(order.TotalPrice.Float64()),
	}
	result.Match = result.GrandTotal == result.ReportedTotal

	return result, nil
}
