package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/paymentmethod"

	"github.com/classbridge/billing-renewals/pkg/enums"
	pkgerrors "github.com/classbridge/billing-renewals/pkg/errors"
	pkgstripe "github.com/classbridge/billing-renewals/pkg/stripe"
)

type (
	newIntentFunc    func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	attachMethodFunc func(id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error)
)

// StripeGateway charges renewals with off-session, confirmed PaymentIntents.
type StripeGateway struct {
	newIntent newIntentFunc
	attach    attachMethodFunc
}

// NewStripeGateway requires an initialized client so the package-level key is set.
func NewStripeGateway(client *pkgstripe.Client) (*StripeGateway, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return &StripeGateway{
		newIntent: paymentintent.New,
		attach:    paymentmethod.Attach,
	}, nil
}

func (g *StripeGateway) Provider() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (g *StripeGateway) CreateConfirmedPaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntentResult, error) {
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(strings.ToLower(req.Currency.String())),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := g.newIntent(params)
	if err != nil {
		return stripeErrorResult(err), mapStripeError(err, "create payment intent")
	}
	if intent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe returned no payment intent")
	}
	return stripeIntentResult(intent), nil
}

func (g *StripeGateway) AttachPaymentInstrument(ctx context.Context, customerID, instrumentID string) error {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(instrumentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id and payment method id are required")
	}
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	if _, err := g.attach(instrumentID, params); err != nil {
		return mapStripeError(err, "attach payment method")
	}
	return nil
}

func stripeIntentResult(intent *stripe.PaymentIntent) *PaymentIntentResult {
	status := string(intent.Status)
	result := &PaymentIntentResult{
		ID:             intent.ID,
		ProviderStatus: status,
		Status:         StripeRecordStatus(status),
	}
	if !result.Succeeded() {
		result.ErrorDetail = fmt.Sprintf("payment intent status %s", status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			result.ErrorDetail = intent.LastPaymentError.Msg
		}
	}
	return result
}

// stripeErrorResult keeps the intent id when Stripe created one before declining.
func stripeErrorResult(err error) *PaymentIntentResult {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) || stripeErr.PaymentIntent == nil {
		return nil
	}
	result := stripeIntentResult(stripeErr.PaymentIntent)
	if result.Succeeded() {
		// an error response never confirms a charge
		result.Status = enums.PaymentIntentStatusFailed
	}
	if stripeErr.Msg != "" {
		result.ErrorDetail = stripeErr.Msg
	}
	return result
}

func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
	}
	code := pkgerrors.CodeDependency
	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		code = pkgerrors.CodePaymentDeclined
	case stripeErr.Type == stripe.ErrorTypeIdempotency:
		code = pkgerrors.CodeIdempotency
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized || stripeErr.HTTPStatusCode == http.StatusForbidden:
		code = pkgerrors.CodeUnauthorized
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	case stripeErr.HTTPStatusCode == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500:
		code = pkgerrors.CodeValidation
	}
	msg := fmt.Sprintf("stripe %s failed", op)
	if stripeErr.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, stripeErr.Msg)
	}
	if stripeErr.DeclineCode != "" {
		msg = fmt.Sprintf("%s (%s)", msg, stripeErr.DeclineCode)
	}
	return pkgerrors.Wrap(code, err, msg).WithDetails(map[string]any{
		"stripe_code":       string(stripeErr.Code),
		"stripe_request_id": stripeErr.RequestID,
	})
}
