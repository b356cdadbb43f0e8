package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/classbridge/billing-renewals/pkg/enums"
	pkgerrors "github.com/classbridge/billing-renewals/pkg/errors"
	"github.com/classbridge/billing-renewals/pkg/square"
)

// Square caps idempotency keys at 45 characters; renewal keys are folded into
// a name-based UUID so the same renewal attempt always maps to the same key.
var squareIdempotencyNamespace = uuid.MustParse("6f1b7b1e-3f0c-4a53-9d2e-1c0a4e6b9f21")

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	CreateCard(ctx context.Context, params square.CardCreateParams) (*sq.Card, error)
}

// SquareGateway charges a card on file through the Square Payments API.
type SquareGateway struct {
	client squarePayments
}

func NewSquareGateway(client *square.Client) (*SquareGateway, error) {
	if client == nil {
		return nil, errors.New("square client required")
	}
	return &SquareGateway{client: client}, nil
}

func (g *SquareGateway) Provider() enums.PaymentProvider {
	return enums.PaymentProviderSquare
}

func (g *SquareGateway) CreateConfirmedPaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntentResult, error) {
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	params := square.PaymentCreateParams{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency.String(),
		CustomerID:     req.CustomerID,
		SourceID:       req.PaymentMethodID,
		IdempotencyKey: squareIdempotencyKey(req.IdempotencyKey),
		ReferenceID:    req.Metadata["subscription_id"],
		Note:           squareNote(req.Metadata),
	}

	payment, err := g.client.CreatePayment(ctx, params)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment")
	}

	status := ""
	if payment.Status != nil {
		status = *payment.Status
	}
	result := &PaymentIntentResult{
		ProviderStatus: status,
		Status:         SquareRecordStatus(status),
	}
	if payment.ID != nil {
		result.ID = *payment.ID
	}
	if !result.Succeeded() {
		result.ErrorDetail = fmt.Sprintf("payment status %s", status)
	}
	return result, nil
}

// AttachPaymentInstrument vaults a card nonce on the Square customer.
func (g *SquareGateway) AttachPaymentInstrument(ctx context.Context, customerID, instrumentID string) error {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(instrumentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id and card source id are required")
	}
	_, err := g.client.CreateCard(ctx, square.CardCreateParams{
		CustomerID: customerID,
		SourceID:   instrumentID,
	})
	return err
}

func squareIdempotencyKey(key string) string {
	if strings.TrimSpace(key) == "" {
		return ""
	}
	return uuid.NewSHA1(squareIdempotencyNamespace, []byte(key)).String()
}

func squareNote(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	parts := []string{"subscription renewal"}
	if attempt := metadata["attempt"]; attempt != "" {
		parts = append(parts, "attempt "+attempt)
	}
	return strings.Join(parts, ", ")
}
