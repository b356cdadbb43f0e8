package renewal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// ToMinorUnits converts a major-unit price into the integer amount a gateway
// charges, rounding half away from zero at the minor-unit boundary.
func ToMinorUnits(price decimal.Decimal, currency enums.Currency) (int64, error) {
	scaled := price.Shift(currency.MinorUnitExponent()).Round(0)
	if !scaled.IsPositive() {
		return 0, fmt.Errorf("price %s %s is not chargeable", price.String(), currency)
	}
	return scaled.IntPart(), nil
}
