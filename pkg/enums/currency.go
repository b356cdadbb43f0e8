package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 currency code as stored on a package.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
)

// zeroDecimalCurrencies are charged in whole units by card processors.
var zeroDecimalCurrencies = map[Currency]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// MinorUnitExponent returns the number of decimal places of the minor unit.
func (c Currency) MinorUnitExponent() int32 {
	if _, ok := zeroDecimalCurrencies[c]; ok {
		return 0
	}
	return 2
}

// ParseCurrency normalizes a three letter currency code.
func ParseCurrency(value string) (Currency, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if len(trimmed) != 3 {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	for _, r := range trimmed {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid currency %q", value)
		}
	}
	return Currency(trimmed), nil
}
