package renewal

import (
	"time"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// AdvanceEndDate extends coverage by one billing period.
//
// The period starts at the current end date, or at now when coverage has
// already lapsed. Months are added with time.AddDate, so a day that does not
// exist in the target month overflows: 2024-01-31 plus one month is 2024-03-02.
// Arithmetic happens in UTC so the host time zone never shifts the result.
// Unknown frequencies advance one month and report known=false.
func AdvanceEndDate(endDate, now time.Time, frequency enums.BillingFrequency) (newEnd time.Time, known bool) {
	base := endDate.UTC()
	if base.Before(now) {
		base = now.UTC()
	}
	months, known := frequency.Months()
	if !known {
		months = 1
	}
	return base.AddDate(0, months, 0), known
}

// NextBillingDate is the day the following renewal becomes due.
func NextBillingDate(newEnd time.Time) time.Time {
	return newEnd.UTC().AddDate(0, 0, -billingLeadDays)
}
