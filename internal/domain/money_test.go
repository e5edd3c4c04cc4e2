package domain

import (
	"encoding/json"
	"testing"
)

func TestMoneyUnmarshal(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "quoted string", input: `"12.34"`, want: 12.34},
		{name: "bare number", input: `12.34`, want: 12.34},
		{name: "integer", input: `100`, want: 100},
		{name: "null", input: `null`, want: 0},
		{name: "empty string", input: `""`, want: 0},
		{name: "negative", input: `"-5.50"`, want: -5.5},
		{name: "garbage", input: `"abc"`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m Money
			err := json.Unmarshal([]byte(tc.input), &m)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal %q: %v", tc.input, err)
			}
			if m.Float64() != tc.want {
				t.Fatalf("got %v, want %v", m.Float64(), tc.want)
			}
		})
	}
}

func TestMoneyMarshal(t *testing.T) {
	data, err := json.Marshal(Money(16.4))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"16.40"` {
		t.Fatalf("got %s, want \"16.40\"", data)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{190.0, 190.0},
		{16.404, 16.40},
		{16.405, 16.41},
		{-2.675, -2.68},
		{0.005, 0.01},
	}
	for _, tc := range cases {
		if got := Round2(tc.input); got != tc.want {
			t.Fatalf("Round2(%v) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestOrderDecode(t *testing.T) {
	payload := `{
		"id": 5001,
		"name": "#1042",
		"financial_status": "paid",
		"total_price": "205.00",
		"taxes_included": false,
		"created_at": "2024-03-05T09:30:00-05:00",
		"line_items": [
			{
				"id": 1,
				"sku": "WID-1",
				"title": "Widget",
				"price": "100.00",
				"quantity": 2,
				"tax_lines": [{"title": "State Tax", "rate": 0.08, "price": "16.40"}],
				"discount_allocations": [{"amount": "10.00"}]
			}
		],
		"shipping_lines": [{"title": "Ground", "price": "15.00"}],
		"tax_lines": [{"title": "State Tax", "rate": 0.08, "price": "16.40"}],
		"shipping_address": {"province_code": "WA", "country_code": "US"}
	}`

	var order Order
	if err := json.Unmarshal([]byte(payload), &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}

	if order.ExternalID() != "5001" {
		t.Fatalf("external id = %q, want 5001", order.ExternalID())
	}
	if order.TotalPrice.Float64() != 205.0 {
		t.Fatalf("total price = %v, want 205", order.TotalPrice.Float64())
	}
	if len(order.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(order.LineItems))
	}
	line := order.LineItems[0]
	if line.TotalDiscount() != 10.0 {
		t.Fatalf("total discount = %v, want 10", line.TotalDiscount())
	}
	if line.TotalTax() != 16.4 {
		t.Fatalf("total tax = %v, want 16.4", line.TotalTax())
	}
	if order.ShippingAddress == nil || order.ShippingAddress.ProvinceCode != "WA" {
		t.Fatalf("shipping address not decoded: %+v", order.ShippingAddress)
	}
}
