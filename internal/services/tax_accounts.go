package services

import (
	"errors"
	"fmt"

	domain "github.com/storebridge/erpsync/internal/domain"
)

// Charge types recognised by the tax account policy.
const (
	ChargeTypeSalesTax = "sales_tax"
	ChargeTypeShipping = "shipping"
)

// Ledger accounts the region rules are pinned to. These are deployment
// chart-of-accounts names mandated by the finance team, not configuration.
const (
	accountStateTaxWA   = "2310 - State Taxes WA - SV"
	accountLocalTaxWA   = "2320 - Local Taxes WA - SV"
	accountStateTaxFL   = "2330 - State Taxes FL - SV"
	accountLocalTaxFL   = "2340 - Local Taxes FL - SV"
	accountOtherRegions = "2350 - Other States - SV"
)

// Tax titles the state-level accounts are keyed on.
const (
	titleStateTaxWA = "Washington State Tax"
	titleStateTaxFL = "Florida State Tax"
)

// ErrTaxAccountNotConfigured is returned when no ledger account can be
// resolved for a tax title after all fallbacks.
var ErrTaxAccountNotConfigured = errors.New("tax accounts: no account configured")

// TaxAccountResolver picks the ledger account head for a tax or shipping
// charge. Resolution order for sales tax: hard-coded region rules keyed on
// the order's shipping address, then the per-deployment title mapping, then
// the default account for the charge type, then a fixed fallback. The region
// rules deliberately run before, and override, the configurable mapping.
type TaxAccountResolver struct {
	settings domain.SyncSettings

	// fallbackAccount is the last-resort account head. Cleared in tests to
	// exercise the unresolved path.
	fallbackAccount string
}

// NewTaxAccountResolver constructs a resolver over validated settings.
func NewTaxAccountResolver(settings domain.SyncSettings) *TaxAccountResolver {
	return &TaxAccountResolver{
		settings:        settings,
		fallbackAccount: accountStateTaxWA,
	}
}

// AccountHead resolves the ledger account for the given tax title. The order
// may be nil when the charge has no shipping-address context, such as tax
// lines attached to a shipping charge.
func (r *TaxAccountResolver) AccountHead(title string, chargeType string, order *domain.Order) (string, error) {
	if chargeType == ChargeTypeSalesTax {
		if order == nil {
			return accountOtherRegions, nil
		}
		if addr := order.ShippingAddress; addr != nil {
			switch state := addr.ProvinceCode; state {
			case "":
				return accountOtherRegions, nil
			case "WA":
				if title == titleStateTaxWA {
					return accountStateTaxWA, nil
				}
				return accountLocalTaxWA, nil
			case "FL":
				if title == titleStateTaxFL {
					return accountStateTaxFL, nil
				}
				return accountLocalTaxFL, nil
			default:
				return accountOtherRegions, nil
			}
		}
		// No shipping address on the order: fall through to the mapping.
	}

	account := r.settings.TaxAccounts[title]

	if account == "" {
		switch chargeType {
		case ChargeTypeSalesTax:
			account = r.settings.DefaultSalesTaxAccount
		case ChargeTypeShipping:
			account = r.settings.DefaultShippingAccount
		}
	}

	if account == "" {
		account = r.fallbackAccount
	}

	if account == "" {
		return "", fmt.Errorf("%w: tax title %q", ErrTaxAccountNotConfigured, title)
	}
	return account, nil
}

// Description returns the configured ledger description for a tax title, or
// "" when none is configured.
func (r *TaxAccountResolver) Description(title string) string {
	return r.settings.TaxDescriptions[title]
}
