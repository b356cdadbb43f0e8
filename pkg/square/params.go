package square

import (
	"errors"
	"strings"

	sq "github.com/square/square-go-sdk"
)

const defaultCurrency = "USD"

// Square rejects notes and reference ids past these lengths.
const (
	maxNoteLen      = 500
	maxReferenceLen = 40
)

// CardCreateParams vault a card nonce on a customer so renewals can charge it.
type CardCreateParams struct {
	CustomerID     string
	SourceID       string
	CardholderName string
	ReferenceID    string
	IdempotencyKey string
}

func (p CardCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateCardRequest {
	req := &sq.CreateCardRequest{IdempotencyKey: idempotencyKey, SourceID: p.SourceID}
	card := sq.Card{
		CustomerID:     optional(p.CustomerID),
		CardholderName: optional(p.CardholderName),
		ReferenceID:    optional(truncate(p.ReferenceID, maxReferenceLen)),
	}
	if card.CustomerID != nil || card.CardholderName != nil || card.ReferenceID != nil {
		req.Card = &card
	}
	return req
}

// PaymentCreateParams describe one off-session charge. SourceID is a card on
// file id when CustomerID is set.
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) validate() error {
	switch {
	case p.AmountMinor <= 0:
		return errors.New("amount must be positive")
	case strings.TrimSpace(p.SourceID) == "":
		return errors.New("source id is required")
	}
	return nil
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	amount := p.AmountMinor
	return &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     optional(p.LocationID),
		CustomerID:     optional(p.CustomerID),
		SourceID:       p.SourceID,
		Autocomplete:   &autocomplete,
		AmountMoney:    &sq.Money{Amount: &amount, Currency: currencyCode(p.Currency)},
		Note:           optional(truncate(p.Note, maxNoteLen)),
		ReferenceID:    optional(truncate(p.ReferenceID, maxReferenceLen)),
	}
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) > limit {
		return value[:limit]
	}
	return value
}

func currencyCode(code string) *sq.Currency {
	c := sq.Currency(strings.ToUpper(strings.TrimSpace(code)))
	if c == "" {
		c = defaultCurrency
	}
	return &c
}
