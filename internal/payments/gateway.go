package payments

import (
	"context"
	"strings"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// PaymentIntentRequest describes one off-session charge against a stored instrument.
type PaymentIntentRequest struct {
	AmountMinor     int64
	Currency        enums.Currency
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
	IdempotencyKey  string
}

// PaymentIntentResult is the provider-neutral view of a created intent.
type PaymentIntentResult struct {
	ID string
	// ProviderStatus is the raw status string reported by the provider.
	ProviderStatus string
	Status         enums.PaymentIntentStatus
	ErrorDetail    string
}

func (r *PaymentIntentResult) Succeeded() bool {
	return r != nil && r.Status == enums.PaymentIntentStatusSucceeded
}

// Gateway is the payment processor seam used by the renewal executor.
//
// CreateConfirmedPaymentIntent may return a non-nil result together with an
// error when the provider created an intent and then rejected it.
type Gateway interface {
	Provider() enums.PaymentProvider
	CreateConfirmedPaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntentResult, error)
	AttachPaymentInstrument(ctx context.Context, customerID, instrumentID string) error
}

// StripeRecordStatus maps a Stripe PaymentIntent status onto the audit record status.
func StripeRecordStatus(status string) enums.PaymentIntentStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return enums.PaymentIntentStatusSucceeded
	case "processing", "requires_action", "requires_confirmation", "requires_capture":
		return enums.PaymentIntentStatusPending
	default:
		return enums.PaymentIntentStatusFailed
	}
}

// SquareRecordStatus maps a Square Payment status onto the audit record status.
func SquareRecordStatus(status string) enums.PaymentIntentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED":
		return enums.PaymentIntentStatusSucceeded
	case "APPROVED", "PENDING":
		return enums.PaymentIntentStatusPending
	default:
		return enums.PaymentIntentStatusFailed
	}
}
