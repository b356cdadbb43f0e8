package renewal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/billing-renewals/internal/billing"
	"github.com/classbridge/billing-renewals/pkg/db/models"
)

// Store is the persistence surface used by a renewal run.
// billing.Repository satisfies it.
type Store interface {
	FindEligibleSubscriptions(ctx context.Context, query billing.EligibilityQuery) ([]models.Subscription, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, patch billing.SubscriptionPatch) error
	AppendPaymentIntentRecord(ctx context.Context, record *models.PaymentIntentRecord) error
	FindSucceededIntent(ctx context.Context, subscriptionID uuid.UUID, renewedFrom time.Time) (*models.PaymentIntentRecord, error)
}
