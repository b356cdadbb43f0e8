package enums

import (
	"fmt"
	"strings"
)

// BillingFrequency defines how often a package renews.
type BillingFrequency string

const (
	BillingFrequencyMonthly   BillingFrequency = "monthly"
	BillingFrequencyQuarterly BillingFrequency = "quarterly"
	BillingFrequencyHalfYear  BillingFrequency = "half-year"
	BillingFrequencyYearly    BillingFrequency = "yearly"
)

var billingFrequencyMonths = map[BillingFrequency]int{
	BillingFrequencyMonthly:   1,
	BillingFrequencyQuarterly: 3,
	BillingFrequencyHalfYear:  6,
	BillingFrequencyYearly:    12,
}

// String implements fmt.Stringer.
func (b BillingFrequency) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingFrequency.
func (b BillingFrequency) IsValid() bool {
	_, ok := billingFrequencyMonths[b]
	return ok
}

// Months returns the number of calendar months covered by one period.
// The boolean is false for unknown frequencies.
func (b BillingFrequency) Months() (int, bool) {
	months, ok := billingFrequencyMonths[b]
	return months, ok
}

// ParseBillingFrequency converts raw input into a BillingFrequency.
func ParseBillingFrequency(value string) (BillingFrequency, error) {
	candidate := BillingFrequency(strings.ToLower(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid billing frequency %q", value)
}
