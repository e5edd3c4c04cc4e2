package services

import (
	"errors"
	"testing"

	domain "github.com/storebridge/erpsync/internal/domain"
)

func orderWithRegion(code string) *domain.Order {
	return &domain.Order{ShippingAddress: &domain.Address{ProvinceCode: code}}
}

func TestTaxAccountResolver_RegionRules(t *testing.T) {
	resolver := NewTaxAccountResolver(domain.SyncSettings{})

	cases := []struct {
		name  string
		title string
		order *domain.Order
		want  string
	}{
		{name: "WA state title", title: "Washington State Tax", order: orderWithRegion("WA"), want: "2310 - State Taxes WA - SV"},
		{name: "WA other title", title: "King County Tax", order: orderWithRegion("WA"), want: "2320 - Local Taxes WA - SV"},
		{name: "FL state title", title: "Florida State Tax", order: orderWithRegion("FL"), want: "2330 - State Taxes FL - SV"},
		{name: "FL other title", title: "Miami-Dade County Tax", order: orderWithRegion("FL"), want: "2340 - Local Taxes FL - SV"},
		{name: "other region", title: "Washington State Tax", order: orderWithRegion("CA"), want: "2350 - Other States - SV"},
		{name: "missing region code", title: "State Tax", order: orderWithRegion(""), want: "2350 - Other States - SV"},
		{name: "no order context", title: "State Tax", order: nil, want: "2350 - Other States - SV"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolver.AccountHead(tc.title, ChargeTypeSalesTax, tc.order)
			if err != nil {
				t.Fatalf("AccountHead error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("account = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTaxAccountResolver_RegionRulesOverrideMapping(t *testing.T) {
	resolver := NewTaxAccountResolver(domain.SyncSettings{
		TaxAccounts: map[string]string{"Washington State Tax": "9999 - Custom - SV"},
	})

	got, err := resolver.AccountHead("Washington State Tax", ChargeTypeSalesTax, orderWithRegion("WA"))
	if err != nil {
		t.Fatalf("AccountHead error: %v", err)
	}
	if got != "2310 - State Taxes WA - SV" {
		t.Fatalf("account = %q, region rule should override the mapping", got)
	}
}

func TestTaxAccountResolver_MissingShippingAddressUsesMapping(t *testing.T) {
	resolver := NewTaxAccountResolver(domain.SyncSettings{
		TaxAccounts: map[string]string{"State Tax": "4010 - Mapped - SV"},
	})

	// Order context present but no shipping address: the configurable
	// mapping applies instead of a region account.
	got, err := resolver.AccountHead("State Tax", ChargeTypeSalesTax, &domain.Order{})
	if err != nil {
		t.Fatalf("AccountHead error: %v", err)
	}
	if got != "4010 - Mapped - SV" {
		t.Fatalf("account = %q, want mapped account", got)
	}
}

func TestTaxAccountResolver_ChargeTypeDefaults(t *testing.T) {
	resolver := NewTaxAccountResolver(domain.SyncSettings{
		DefaultSalesTaxAccount: "4100 - Default Sales Tax - SV",
		DefaultShippingAccount: "4200 - Freight - SV",
	})

	got, err := resolver.AccountHead("Unmapped Tax", ChargeTypeSalesTax, &domain.Order{})
	if err != nil {
		t.Fatalf("AccountHead error: %v", err)
	}
	if got != "4100 - Default Sales Tax - SV" {
		t.Fatalf("sales tax default = %q", got)
	}

	got, err = resolver.AccountHead("Ground", ChargeTypeShipping, nil)
	if err != nil {
		t.Fatalf("AccountHead error: %v", err)
	}
	if got != "4200 - Freight - SV" {
		t.Fatalf("shipping default = %q", got)
	}
}

func TestTaxAccountResolver_HardFallback(t *testing.T) {
	resolver := NewTaxAccountResolver(domain.SyncSettings{})

	got, err := resolver.AccountHead("Unmapped Tax", ChargeTypeShipping, nil)
	if err != nil {
		t.Fatalf("AccountHead error: %v", err)
	}
	if got != "2310 - State Taxes WA - SV" {
		t.Fatalf("fallback account = %q", got)
	}
}

func TestTaxAccountResolver_Unresolved(t *testing.T) {
	resolver := NewTaxAccountResolver(domain.SyncSettings{})
	resolver.fallbackAccount = ""

	_, err := resolver.AccountHead("Unmapped Tax", ChargeTypeShipping, nil)
	if !errors.Is(err, ErrTaxAccountNotConfigured) {
		t.Fatalf("expected ErrTaxAccountNotConfigured, got %v", err)
	}
}

func TestTaxAccountResolver_Description(t *testing.T) {
	resolver := NewTaxAccountResolver(domain.SyncSettings{
		TaxDescriptions: map[string]string{"State Tax": "State sales tax"},
	})

	if got := resolver.Description("State Tax"); got != "State sales tax" {
		t.Fatalf("description = %q", got)
	}
	if got := resolver.Description("Unknown"); got != "" {
		t.Fatalf("expected empty description, got %q", got)
	}
}
