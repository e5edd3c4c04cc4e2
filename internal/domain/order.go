package domain

import (
	"strconv"
	"time"
)

// Order is the decoded storefront order payload delivered by webhooks.
type Order struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Note            string         `json:"note"`
	Currency        string         `json:"currency"`
	FinancialStatus string         `json:"financial_status"`
	TotalPrice      Money          `json:"total_price"`
	TaxesIncluded   bool           `json:"taxes_included"`
	CreatedAt       time.Time      `json:"created_at"`
	LineItems       []LineItem     `json:"line_items"`
	ShippingLines   []ShippingLine `json:"shipping_lines"`
	TaxLines        []TaxLine      `json:"tax_lines"`
	Customer        *Customer      `json:"customer"`
	BillingAddress  *Address       `json:"billing_address"`
	ShippingAddress *Address       `json:"shipping_address"`
}

// ExternalID returns the storefront order id as the string key used to link
// ERP documents back to the source order.
func (o Order) ExternalID() string {
	return strconv.FormatInt(o.ID, 10)
}

// LineItem is one ordered product line. SKU may be a "+"-joined composite key
// denoting a bundle of several catalog items sold as one line.
type LineItem struct {
	ID                  int64                `json:"id"`
	SKU                 string               `json:"sku"`
	Title               string               `json:"title"`
	Price               Money                `json:"price"`
	Quantity            int                  `json:"quantity"`
	TaxLines            []TaxLine            `json:"tax_lines"`
	DiscountAllocations []DiscountAllocation `json:"discount_allocations"`
}

// TotalDiscount sums the line's discount allocations.
func (l LineItem) TotalDiscount() float64 {
	var total float64
	for _, discount := range l.DiscountAllocations {
		total += discount.Amount.Float64()
	}
	return total
}

// TotalTax sums the line's tax line amounts.
func (l LineItem) TotalTax() float64 {
	var total float64
	for _, tax := range l.TaxLines {
		total += tax.Price.Float64()
	}
	return total
}

// ShippingLine is one shipping charge on the order.
type ShippingLine struct {
	Title               string               `json:"title"`
	Price               Money                `json:"price"`
	TaxLines            []TaxLine            `json:"tax_lines"`
	DiscountAllocations []DiscountAllocation `json:"discount_allocations"`
}

// TotalDiscount sums the shipping line's discount allocations.
func (s ShippingLine) TotalDiscount() float64 {
	var total float64
	for _, discount := range s.DiscountAllocations {
		total += discount.Amount.Float64()
	}
	return total
}

// TotalTax sums the shipping line's tax line amounts.
func (s ShippingLine) TotalTax() float64 {
	var total float64
	for _, tax := range s.TaxLines {
		total += tax.Price.Float64()
	}
	return total
}

// TaxLine carries a named tax applied to the order or one of its lines. The
// title is the reconciliation key, not an id.
type TaxLine struct {
	Title string  `json:"title"`
	Rate  float64 `json:"rate"`
	Price Money   `json:"price"`
}

// DiscountAllocation is a portion of an order discount applied to a line.
type DiscountAllocation struct {
	Amount Money `json:"amount"`
}

// Customer identifies the storefront customer on the order.
type Customer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Address is a storefront billing or shipping address.
type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"province_code"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Zip          string `json:"zip"`
	Phone        string `json:"phone"`
}
