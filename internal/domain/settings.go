package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SyncSettings is the validated per-deployment configuration consumed by the
// order sync pipeline. It replaces the live settings document the ERP side
// keeps; values are loaded once and passed explicitly.
type SyncSettings struct {
	Company          string
	Warehouse        string
	CostCenter       string
	CustomerGroup    string
	DefaultCustomer  string
	SalesOrderSeries string
	SellingPriceList string

	// ShippingAsItem switches shipping charges from ledger tax rows to
	// synthetic catalog lines using ShippingItem.
	ShippingAsItem bool
	ShippingItem   string

	ConsolidateTaxes bool

	// TaxAccounts maps storefront tax titles to ledger account heads.
	TaxAccounts     map[string]string
	TaxDescriptions map[string]string

	DefaultSalesTaxAccount string
	DefaultShippingAccount string

	// DeliveryCutoffHour is the local hour after which new orders schedule
	// delivery from the next day. Zero means the default of 14.
	DeliveryCutoffHour int
}

// Validate reports every missing or out-of-range field at once.
func (s SyncSettings) Validate() error {
	var problems []string

	if strings.TrimSpace(s.Company) == "" {
		problems = append(problems, "company is required")
	}
	if strings.TrimSpace(s.Warehouse) == "" {
		problems = append(problems, "warehouse is required")
	}
	if strings.TrimSpace(s.CostCenter) == "" {
		problems = append(problems, "cost center is required")
	}
	if s.ShippingAsItem && strings.TrimSpace(s.ShippingItem) == "" {
		problems = append(problems, "shipping item is required when shipping is added as an item")
	}
	if s.DeliveryCutoffHour < 0 || s.DeliveryCutoffHour > 23 {
		problems = append(problems, fmt.Sprintf("delivery cutoff hour %d is out of range", s.DeliveryCutoffHour))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("sync settings: " + strings.Join(problems, "; "))
}
