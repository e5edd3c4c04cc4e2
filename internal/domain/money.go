package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a decimal currency amount in major units. Storefront payloads carry
// amounts as quoted strings ("12.34"); older API versions and embedded numeric
// fields use bare numbers. Both decode into Money.
type Money float64

// UnmarshalJSON accepts string, numeric, and null encodings.
func (m *Money) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*m = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(trimmed); err == nil {
		trimmed = strings.TrimSpace(unquoted)
		if trimmed == "" {
			*m = 0
			return nil
		}
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("money: parse %q: %w", string(data), err)
	}
	*m = Money(value)
	return nil
}

// MarshalJSON renders the amount as a 2-decimal quoted string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(m), 'f', 2, 64))
}

// Float64 returns the raw amount.
func (m Money) Float64() float64 {
	return float64(m)
}

// Round2 rounds a currency amount to 2 decimal places, half away from zero.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
