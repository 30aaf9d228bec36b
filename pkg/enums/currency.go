package enums

import (
	"slices"
	"strings"
)

// Currency represents the monetary denominations orders and prices use.
type Currency string

const (
	CurrencyILS Currency = "ILS"
	CurrencyUSD Currency = "USD"
)

var validCurrencies = []Currency{
	CurrencyILS,
	CurrencyUSD,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	return slices.Contains(validCurrencies, c)
}

// ParseCurrency converts a raw string into a Currency. Matching is case-insensitive.
func ParseCurrency(value string) (Currency, error) {
	return member(validCurrencies, "currency", value, strings.ToUpper(strings.TrimSpace(value)))
}
