package renewal

import (
	"time"

	"github.com/classbridge/billing-renewals/internal/billing"
	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
)

// State is the renewal-owned slice of a subscription.
type State struct {
	Status             enums.SubscriptionStatus
	AutoRenew          bool
	Attempts           int
	EndDate            time.Time
	NextBillingDate    *time.Time
	LastRenewalAttempt *time.Time
	FailureReason      *string
	ClassesRemaining   int
	ClassesCompleted   int
}

func StateOf(sub models.Subscription) State {
	return State{
		Status:             sub.Status,
		AutoRenew:          sub.AutoRenew,
		Attempts:           sub.AutoRenewAttempts,
		EndDate:            sub.EndDate,
		NextBillingDate:    sub.NextBillingDate,
		LastRenewalAttempt: sub.LastRenewalAttempt,
		FailureReason:      sub.RenewalFailureReason,
		ClassesRemaining:   sub.ClassesRemaining,
		ClassesCompleted:   sub.ClassesCompleted,
	}
}

// Policy decides the next state after a renewal attempt. It is pure.
type Policy struct {
	MaxAttempts int
}

func NewPolicy(maxAttempts int) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Policy{MaxAttempts: maxAttempts}
}

// OnFailure counts the attempt and expires the subscription once attempts
// reach the maximum. next_billing_date is left alone so the subscription is
// due again on the next run.
func (p Policy) OnFailure(s State, reason string, now time.Time) State {
	next := s
	next.Attempts = s.Attempts + 1
	if next.Attempts >= p.MaxAttempts {
		next.Attempts = p.MaxAttempts
		next.Status = enums.SubscriptionStatusExpired
		next.AutoRenew = false
	}
	next.LastRenewalAttempt = &now
	next.FailureReason = &reason
	return next
}

// OnSuccess resets retry bookkeeping and usage counters for the new period.
func (p Policy) OnSuccess(s State, newEnd time.Time, allotment int, now time.Time) State {
	nextBilling := NextBillingDate(newEnd)
	next := s
	next.Status = enums.SubscriptionStatusActive
	next.Attempts = 0
	next.EndDate = newEnd
	next.NextBillingDate = &nextBilling
	next.LastRenewalAttempt = &now
	next.FailureReason = nil
	next.ClassesRemaining = allotment
	next.ClassesCompleted = 0
	return next
}

// Patch renders every renewal-owned column of the state.
func (s State) Patch() billing.SubscriptionPatch {
	status := s.Status
	autoRenew := s.AutoRenew
	attempts := s.Attempts
	endDate := s.EndDate
	remaining := s.ClassesRemaining
	completed := s.ClassesCompleted
	patch := billing.SubscriptionPatch{
		Status:             &status,
		AutoRenew:          &autoRenew,
		AutoRenewAttempts:  &attempts,
		EndDate:            &endDate,
		NextBillingDate:    s.NextBillingDate,
		LastRenewalAttempt: s.LastRenewalAttempt,
		ClassesRemaining:   &remaining,
		ClassesCompleted:   &completed,
	}
	if s.FailureReason == nil {
		patch.ClearFailureReason = true
	} else {
		patch.RenewalFailureReason = s.FailureReason
	}
	return patch
}

// FailurePatch only touches the columns a failed attempt changes.
func (s State) FailurePatch() billing.SubscriptionPatch {
	status := s.Status
	autoRenew := s.AutoRenew
	attempts := s.Attempts
	return billing.SubscriptionPatch{
		Status:               &status,
		AutoRenew:            &autoRenew,
		AutoRenewAttempts:    &attempts,
		LastRenewalAttempt:   s.LastRenewalAttempt,
		RenewalFailureReason: s.FailureReason,
	}
}
