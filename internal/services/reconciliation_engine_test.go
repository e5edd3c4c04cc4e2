package services

import (
	"errors"
	"testing"

	domain "github.com/storebridge/erpsync/internal/domain"
)

func TestReconciliationEngine_Subtotal(t *testing.T) {
	engine := NewReconciliationEngine()

	items := []domain.LineItem{
		{SKU: "A", Price: 100, Quantity: 2, DiscountAllocations: []domain.DiscountAllocation{{Amount: 10}}},
		{SKU: "B", Price: 24.99, Quantity: 3},
	}

	subtotal, err := engine.Subtotal(items)
	if err != nil {
		t.Fatalf("Subtotal error: %v", err)
	}
	if subtotal != 264.97 {
		t.Fatalf("subtotal = %v, want 264.97", subtotal)
	}
}

func TestReconciliationEngine_SubtotalEmpty(t *testing.T) {
	engine := NewReconciliationEngine()

	subtotal, err := engine.Subtotal(nil)
	if err != nil {
		t.Fatalf("Subtotal error: %v", err)
	}
	if subtotal != 0 {
		t.Fatalf("subtotal = %v, want 0", subtotal)
	}
}

func TestReconciliationEngine_SubtotalRejectsNegativeInputs(t *testing.T) {
	engine := NewReconciliationEngine()

	cases := []struct {
		name string
		item domain.LineItem
	}{
		{name: "negative price", item: domain.LineItem{Price: -1, Quantity: 1}},
		{name: "negative quantity", item: domain.LineItem{Price: 1, Quantity: -1}},
		{name: "negative discount", item: domain.LineItem{Price: 1, Quantity: 1, DiscountAllocations: []domain.DiscountAllocation{{Amount: -5}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Subtotal([]domain.LineItem{tc.item})
			if !errors.Is(err, ErrReconciliationInvalidInput) {
				t.Fatalf("expected ErrReconciliationInvalidInput, got %v", err)
			}
		})
	}
}

func TestReconciliationEngine_ShippingTotal(t *testing.T) {
	engine := NewReconciliationEngine()

	lines := []domain.ShippingLine{
		{Title: "Ground", Price: 15, DiscountAllocations: []domain.DiscountAllocation{{Amount: 5}}},
		{Title: "Express", Price: 39.04},
	}

	total, err := engine.ShippingTotal(lines)
	if err != nil {
		t.Fatalf("ShippingTotal error: %v", err)
	}
	// Shipping discounts are handled later; the total is the gross sum.
	if total != 54.04 {
		t.Fatalf("shipping total = %v, want 54.04", total)
	}

	if _, err := engine.ShippingTotal([]domain.ShippingLine{{Price: -1}}); !errors.Is(err, ErrReconciliationInvalidInput) {
		t.Fatalf("expected ErrReconciliationInvalidInput for negative price, got %v", err)
	}
}

func TestReconciliationEngine_Taxes(t *testing.T) {
	engine := NewReconciliationEngine()

	items := []domain.LineItem{{Price: 100, Quantity: 2, DiscountAllocations: []domain.DiscountAllocation{{Amount: 10}}}}
	shipping := []domain.ShippingLine{{Price: 15}}
	taxLines := []domain.TaxLine{
		{Title: "State Tax", Rate: 0.08},
		{Title: "County Tax", Rate: 0},
	}

	taxes, err := engine.Taxes(items, shipping, taxLines)
	if err != nil {
		t.Fatalf("Taxes error: %v", err)
	}
	if len(taxes) != 2 {
		t.Fatalf("expected 2 tax entries, got %d", len(taxes))
	}
	if taxes["State Tax"] != 16.4 {
		t.Fatalf("State Tax = %v, want 16.4", taxes["State Tax"])
	}
	// Zero-rate lines contribute 0 but still appear keyed by title.
	if amount, ok := taxes["County Tax"]; !ok || amount != 0 {
		t.Fatalf("County Tax = %v (present %v), want 0 present", amount, ok)
	}
}

func TestReconciliationEngine_TaxesDuplicateTitleLastWriteWins(t *testing.T) {
	engine := NewReconciliationEngine()

	items := []domain.LineItem{{Price: 100, Quantity: 1}}
	taxLines := []domain.TaxLine{
		{Title: "State Tax", Rate: 0.05},
		{Title: "State Tax", Rate: 0.08},
	}

	taxes, err := engine.Taxes(items, nil, taxLines)
	if err != nil {
		t.Fatalf("Taxes error: %v", err)
	}
	if len(taxes) != 1 {
		t.Fatalf("expected 1 tax entry, got %d", len(taxes))
	}
	if taxes["State Tax"] != 8.0 {
		t.Fatalf("State Tax = %v, want 8 (last rate wins)", taxes["State Tax"])
	}
}

func TestReconciliationEngine_TaxesRejectsNegativeRate(t *testing.T) {
	engine := NewReconciliationEngine()

	_, err := engine.Taxes(nil, nil, []domain.TaxLine{{Title: "Broken", Rate: -0.01}})
	if !errors.Is(err, ErrReconciliationInvalidInput) {
		t.Fatalf("expected ErrReconciliationInvalidInput, got %v", err)
	}
}

func TestReconciliationEngine_ReconcileEndToEnd(t *testing.T) {
	engine := NewReconciliationEngine()

	order := domain.Order{
		ID:         5001,
		TotalPrice: 221.40,
		LineItems: []domain.LineItem{
			{SKU: "WID-1", Price: 100, Quantity: 2, DiscountAllocations: []domain.DiscountAllocation{{Amount: 10}}},
		},
		ShippingLines: []domain.ShippingLine{{Title: "Ground", Price: 15}},
		TaxLines:      []domain.TaxLine{{Title: "State Tax", Rate: 0.08}},
	}

	result, err := engine.Reconcile(order)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}

	if result.Subtotal != 190.0 {
		t.Fatalf("subtotal = %v, want 190", result.Subtotal)
	}
	if result.ShippingTotal != 15.0 {
		t.Fatalf("shipping total = %v, want 15", result.ShippingTotal)
	}
	if result.Taxes["State Tax"] != 16.4 {
		t.Fatalf("tax = %v, want 16.4", result.Taxes["State Tax"])
	}
	if result.GrandTotal != 221.40 {
		t.Fatalf("grand total = %v, want 221.40", result.GrandTotal)
	}
	if !result.Match {
		t.Fatalf("expected totals to match, got %+v", result)
	}
}

func TestReconciliationEngine_ReconcileMismatch(t *testing.T) {
	engine := NewReconciliationEngine()

	order := domain.Order{
		ID:         5002,
		TotalPrice: 230.00,
		LineItems:  []domain.LineItem{{SKU: "WID-1", Price: 100, Quantity: 2, DiscountAllocations: []domain.DiscountAllocation{{Amount: 10}}}},
		ShippingLines: []domain.ShippingLine{
			{Title: "Ground", Price: 15},
		},
		TaxLines: []domain.TaxLine{{Title: "State Tax", Rate: 0.08}},
	}

	result, err := engine.Reconcile(order)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Match {
		t.Fatalf("expected mismatch, got %+v", result)
	}
	if result.ReportedTotal != 230.0 {
		t.Fatalf("reported total = %v, want 230", result.ReportedTotal)
	}
}
