package billing

import (
	"time"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// SubscriptionPatch is a partial update of the renewal-owned subscription columns.
// Nil fields are left untouched.
type SubscriptionPatch struct {
	Status               *enums.SubscriptionStatus
	AutoRenew            *bool
	AutoRenewAttempts    *int
	EndDate              *time.Time
	NextBillingDate      *time.Time
	LastRenewalAttempt   *time.Time
	RenewalFailureReason *string
	// ClearFailureReason writes NULL to renewal_failure_reason.
	ClearFailureReason bool
	ClassesRemaining   *int
	ClassesCompleted   *int
}

// Columns renders the patch as a gorm Updates map.
func (p SubscriptionPatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.AutoRenew != nil {
		cols["auto_renew"] = *p.AutoRenew
	}
	if p.AutoRenewAttempts != nil {
		cols["auto_renew_attempts"] = *p.AutoRenewAttempts
	}
	if p.EndDate != nil {
		cols["end_date"] = p.EndDate.UTC()
	}
	if p.NextBillingDate != nil {
		cols["next_billing_date"] = p.NextBillingDate.UTC()
	}
	if p.LastRenewalAttempt != nil {
		cols["last_renewal_attempt"] = p.LastRenewalAttempt.UTC()
	}
	if p.ClearFailureReason {
		cols["renewal_failure_reason"] = nil
	} else if p.RenewalFailureReason != nil {
		cols["renewal_failure_reason"] = *p.RenewalFailureReason
	}
	if p.ClassesRemaining != nil {
		cols["classes_remaining"] = *p.ClassesRemaining
	}
	if p.ClassesCompleted != nil {
		cols["classes_completed"] = *p.ClassesCompleted
	}
	return cols
}
