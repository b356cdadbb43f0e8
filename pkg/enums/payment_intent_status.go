package enums

import "fmt"

// PaymentIntentStatus is the outcome recorded for a single gateway charge attempt.
type PaymentIntentStatus string

const (
	PaymentIntentStatusSucceeded PaymentIntentStatus = "SUCCEEDED"
	PaymentIntentStatusPending   PaymentIntentStatus = "PENDING"
	PaymentIntentStatusFailed    PaymentIntentStatus = "FAILED"
)

var validPaymentIntentStatuses = []PaymentIntentStatus{
	PaymentIntentStatusSucceeded,
	PaymentIntentStatusPending,
	PaymentIntentStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentIntentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentIntentStatus.
func (p PaymentIntentStatus) IsValid() bool {
	for _, candidate := range validPaymentIntentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentIntentStatus converts raw input into a PaymentIntentStatus.
func ParsePaymentIntentStatus(value string) (PaymentIntentStatus, error) {
	for _, candidate := range validPaymentIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment intent status %q", value)
}
