package renewal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/billing-renewals/internal/billing"
	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
)

// Selector picks the subscriptions due for renewal. It never writes.
type Selector struct {
	store    Store
	settings Settings
}

func NewSelector(store Store, settings Settings) (*Selector, error) {
	if store == nil {
		return nil, errors.New("store required")
	}
	return &Selector{store: store, settings: settings.withDefaults()}, nil
}

// Eligible returns at most BatchSize due subscriptions, each at most once.
func (s *Selector) Eligible(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	query := billing.EligibilityQuery{
		Now:         now,
		GracePeriod: s.settings.GracePeriod,
		MaxAttempts: s.settings.MaxAttempts,
		Limit:       s.settings.BatchSize,
	}
	candidates, err := s.store.FindEligibleSubscriptions(ctx, query)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(candidates))
	eligible := make([]models.Subscription, 0, len(candidates))
	for _, sub := range candidates {
		if _, dup := seen[sub.ID]; dup {
			continue
		}
		if !isDue(sub, query) {
			continue
		}
		seen[sub.ID] = struct{}{}
		eligible = append(eligible, sub)
		if len(eligible) == query.Limit {
			break
		}
	}
	return eligible, nil
}

func isDue(sub models.Subscription, query billing.EligibilityQuery) bool {
	return sub.Status == enums.SubscriptionStatusActive &&
		sub.AutoRenew &&
		sub.NextBillingDate != nil &&
		!sub.NextBillingDate.After(query.Cutoff()) &&
		sub.AutoRenewAttempts < query.MaxAttempts
}
