package renewal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classbridge/billing-renewals/internal/billing"
	"github.com/classbridge/billing-renewals/internal/payments"
	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
)

type fakeStore struct {
	mu            sync.Mutex
	subs          []models.Subscription
	patches       map[uuid.UUID][]billing.SubscriptionPatch
	records       []models.PaymentIntentRecord
	lastQuery     billing.EligibilityQuery
	findErr       error
	updateErr     error
	appendErr     error
	succeededErr  error
	succeeded     *models.PaymentIntentRecord
	panicOnLookup uuid.UUID
	panicOnUpdate uuid.UUID
}

func newFakeStore(subs ...models.Subscription) *fakeStore {
	return &fakeStore{subs: subs, patches: map[uuid.UUID][]billing.SubscriptionPatch{}}
}

func (f *fakeStore) FindEligibleSubscriptions(ctx context.Context, query billing.EligibilityQuery) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]models.Subscription, len(f.subs))
	copy(out, f.subs)
	return out, nil
}

func (f *fakeStore) UpdateSubscription(ctx context.Context, id uuid.UUID, patch billing.SubscriptionPatch) error {
	if id == f.panicOnUpdate {
		panic("update exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.patches[id] = append(f.patches[id], patch)
	return nil
}

func (f *fakeStore) AppendPaymentIntentRecord(ctx context.Context, record *models.PaymentIntentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeStore) FindSucceededIntent(ctx context.Context, subscriptionID uuid.UUID, renewedFrom time.Time) (*models.PaymentIntentRecord, error) {
	if subscriptionID == f.panicOnLookup {
		panic("lookup exploded")
	}
	if f.succeededErr != nil {
		return nil, f.succeededErr
	}
	if f.succeeded != nil && f.succeeded.SubscriptionID == subscriptionID {
		return f.succeeded, nil
	}
	return nil, nil
}

func (f *fakeStore) lastPatch(id uuid.UUID) (billing.SubscriptionPatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	patches := f.patches[id]
	if len(patches) == 0 {
		return billing.SubscriptionPatch{}, false
	}
	return patches[len(patches)-1], true
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []payments.PaymentIntentRequest
	// respond decides the result per request; nil means succeeded.
	respond func(req payments.PaymentIntentRequest) (*payments.PaymentIntentResult, error)
}

func (g *fakeGateway) Provider() enums.PaymentProvider { return enums.PaymentProviderStripe }

func (g *fakeGateway) CreateConfirmedPaymentIntent(ctx context.Context, req payments.PaymentIntentRequest) (*payments.PaymentIntentResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	n := len(g.requests)
	g.mu.Unlock()
	if g.respond != nil {
		return g.respond(req)
	}
	return &payments.PaymentIntentResult{
		ID:             fmt.Sprintf("pi_%d", n),
		ProviderStatus: "succeeded",
		Status:         enums.PaymentIntentStatusSucceeded,
	}, nil
}

func (g *fakeGateway) AttachPaymentInstrument(ctx context.Context, customerID, instrumentID string) error {
	return nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func declined(detail string) func(payments.PaymentIntentRequest) (*payments.PaymentIntentResult, error) {
	return func(payments.PaymentIntentRequest) (*payments.PaymentIntentResult, error) {
		return &payments.PaymentIntentResult{
			ID:             "pi_declined",
			ProviderStatus: "requires_payment_method",
			Status:         enums.PaymentIntentStatusFailed,
			ErrorDetail:    detail,
		}, nil
	}
}

var errGatewayDown = errors.New("gateway unreachable")

type subOption func(*models.Subscription)

func withAttempts(n int) subOption {
	return func(s *models.Subscription) { s.AutoRenewAttempts = n }
}

func withoutPaymentMethod() subOption {
	return func(s *models.Subscription) { s.User.DefaultPaymentMethodID = nil }
}

func withFrequency(freq enums.BillingFrequency) subOption {
	return func(s *models.Subscription) { s.Package.SubscriptionFrequency = freq }
}

func withPrice(price, currency string) subOption {
	return func(s *models.Subscription) {
		s.Package.CurrentPrice = decimal.RequireFromString(price)
		s.Package.Currency = currency
	}
}

func withEndDate(end time.Time) subOption {
	return func(s *models.Subscription) {
		s.EndDate = end
		next := NextBillingDate(end)
		s.NextBillingDate = &next
	}
}

// dueSubscription is an active monthly $45.00 subscription ending 2024-06-15.
func dueSubscription(opts ...subOption) models.Subscription {
	customer := "cus_123"
	method := "pm_123"
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	next := NextBillingDate(end)
	user := &models.User{ID: uuid.New(), Email: "student@example.com", StripeCustomerID: &customer, DefaultPaymentMethodID: &method}
	pkg := &models.Package{
		ID:                    uuid.New(),
		Name:                  "Monthly 8",
		CurrentPrice:          decimal.RequireFromString("45.00"),
		Currency:              "USD",
		SubscriptionFrequency: enums.BillingFrequencyMonthly,
		TotalClasses:          8,
	}
	sub := models.Subscription{
		ID:               uuid.New(),
		UserID:           user.ID,
		PackageID:        pkg.ID,
		Status:           enums.SubscriptionStatusActive,
		EndDate:          end,
		NextBillingDate:  &next,
		AutoRenew:        true,
		ClassesCompleted: 5,
		ClassesRemaining: 3,
		User:             user,
		Package:          pkg,
	}
	for _, opt := range opts {
		opt(&sub)
	}
	return sub
}

// runNow is inside the grace window of dueSubscription.
var runNow = time.Date(2024, 6, 9, 2, 0, 0, 0, time.UTC)
