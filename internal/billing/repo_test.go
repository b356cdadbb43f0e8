package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
	pkgerrors "github.com/classbridge/billing-renewals/pkg/errors"
)

var repoNow = time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

func TestFindEligibleSubscriptionsFilters(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	due := SeedSubscription(t, db, Fixture{AutoRenew: true, EndDate: repoNow, NextBillingDate: ptrTime(repoNow.Add(-time.Hour)), CustomerID: "cus_1", PaymentMethodID: "pm_1"})
	withinGrace := SeedSubscription(t, db, Fixture{AutoRenew: true, EndDate: repoNow, NextBillingDate: ptrTime(repoNow.Add(23 * time.Hour))})
	retrying := SeedSubscription(t, db, Fixture{AutoRenew: true, Attempts: 2, EndDate: repoNow, NextBillingDate: ptrTime(repoNow.Add(-48 * time.Hour))})

	// excluded rows
	SeedSubscription(t, db, Fixture{AutoRenew: true, EndDate: repoNow, NextBillingDate: ptrTime(repoNow.Add(25 * time.Hour))})
	SeedSubscription(t, db, Fixture{AutoRenew: false, EndDate: repoNow, NextBillingDate: ptrTime(repoNow)})
	SeedSubscription(t, db, Fixture{AutoRenew: true, Attempts: 3, EndDate: repoNow, NextBillingDate: ptrTime(repoNow)})
	SeedSubscription(t, db, Fixture{AutoRenew: true, Status: enums.SubscriptionStatusExpired, EndDate: repoNow, NextBillingDate: ptrTime(repoNow)})
	SeedSubscription(t, db, Fixture{AutoRenew: true, Status: enums.SubscriptionStatusCancelled, EndDate: repoNow, NextBillingDate: ptrTime(repoNow)})
	SeedSubscription(t, db, Fixture{AutoRenew: true, EndDate: repoNow})

	subs, err := repo.FindEligibleSubscriptions(ctx, EligibilityQuery{
		Now:         repoNow,
		GracePeriod: 24 * time.Hour,
		MaxAttempts: 3,
		Limit:       50,
	})
	require.NoError(t, err)

	ids := []uuid.UUID{}
	for _, sub := range subs {
		ids = append(ids, sub.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{due.ID, withinGrace.ID, retrying.ID}, ids)

	for _, sub := range subs {
		require.NotNil(t, sub.User, "user should be preloaded")
		require.NotNil(t, sub.Package, "package should be preloaded")
		if sub.ID == due.ID {
			customerID, instrumentID, ok := sub.User.PaymentProfile()
			assert.True(t, ok)
			assert.Equal(t, "cus_1", customerID)
			assert.Equal(t, "pm_1", instrumentID)
			assert.True(t, sub.Package.CurrentPrice.Equal(decimal.RequireFromString("45.00")))
		}
	}
}

func TestFindEligibleSubscriptionsRespectsLimit(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRepository(db)

	for i := 0; i < 5; i++ {
		SeedSubscription(t, db, Fixture{AutoRenew: true, EndDate: repoNow, NextBillingDate: ptrTime(repoNow.Add(-time.Duration(i) * time.Hour))})
	}

	subs, err := repo.FindEligibleSubscriptions(context.Background(), EligibilityQuery{
		Now: repoNow, GracePeriod: 24 * time.Hour, MaxAttempts: 3, Limit: 2,
	})
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestFindEligibleSubscriptionsRejectsZeroMaxAttempts(t *testing.T) {
	repo := NewRepository(NewTestDB(t))
	_, err := repo.FindEligibleSubscriptions(context.Background(), EligibilityQuery{Now: repoNow})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestUpdateSubscriptionAppliesPatch(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	reason := "card declined"
	sub := SeedSubscription(t, db, Fixture{AutoRenew: true, Attempts: 1, EndDate: repoNow, NextBillingDate: ptrTime(repoNow)})
	require.NoError(t, db.Model(&models.Subscription{}).Where("id = ?", sub.ID).Update("renewal_failure_reason", reason).Error)

	newEnd := repoNow.AddDate(0, 1, 0)
	next := newEnd.AddDate(0, 0, -7)
	status := enums.SubscriptionStatusActive
	zero := 0
	classes := 8
	err := repo.UpdateSubscription(ctx, sub.ID, SubscriptionPatch{
		Status:             &status,
		AutoRenewAttempts:  &zero,
		EndDate:            &newEnd,
		NextBillingDate:    &next,
		LastRenewalAttempt: &repoNow,
		ClearFailureReason: true,
		ClassesRemaining:   &classes,
		ClassesCompleted:   &zero,
	})
	require.NoError(t, err)

	var stored models.Subscription
	require.NoError(t, db.First(&stored, "id = ?", sub.ID).Error)
	assert.Equal(t, 0, stored.AutoRenewAttempts)
	assert.True(t, stored.EndDate.Equal(newEnd))
	require.NotNil(t, stored.NextBillingDate)
	assert.True(t, stored.NextBillingDate.Equal(next))
	assert.Nil(t, stored.RenewalFailureReason)
	assert.Equal(t, 8, stored.ClassesRemaining)
	assert.True(t, stored.AutoRenew, "untouched columns keep their value")
}

func TestUpdateSubscriptionMissingRow(t *testing.T) {
	repo := NewRepository(NewTestDB(t))
	status := enums.SubscriptionStatusExpired
	err := repo.UpdateSubscription(context.Background(), uuid.New(), SubscriptionPatch{Status: &status})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestUpdateSubscriptionEmptyPatchIsNoop(t *testing.T) {
	repo := NewRepository(NewTestDB(t))
	require.NoError(t, repo.UpdateSubscription(context.Background(), uuid.New(), SubscriptionPatch{}))
}

func TestAppendAndFindSucceededIntent(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	sub := SeedSubscription(t, db, Fixture{AutoRenew: true, EndDate: repoNow, NextBillingDate: ptrTime(repoNow)})

	failed := paymentRecord(sub, "key-1", enums.PaymentIntentStatusFailed, 1)
	require.NoError(t, repo.AppendPaymentIntentRecord(ctx, &failed))
	assert.NotEqual(t, uuid.Nil, failed.ID)

	found, err := repo.FindSucceededIntent(ctx, sub.ID, repoNow)
	require.NoError(t, err)
	assert.Nil(t, found)

	succeeded := paymentRecord(sub, "key-2", enums.PaymentIntentStatusSucceeded, 2)
	require.NoError(t, repo.AppendPaymentIntentRecord(ctx, &succeeded))

	found, err = repo.FindSucceededIntent(ctx, sub.ID, repoNow)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "pi_key-2", found.GatewayIntentID)
	assert.Equal(t, "sub", found.Metadata["kind"])

	other, err := repo.FindSucceededIntent(ctx, sub.ID, repoNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Nil(t, other, "a different billing period has no charge")

	records, err := repo.ListPaymentIntentRecords(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAppendPaymentIntentRecordDuplicateKey(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	sub := SeedSubscription(t, db, Fixture{AutoRenew: true, EndDate: repoNow, NextBillingDate: ptrTime(repoNow)})

	first := paymentRecord(sub, "dup", enums.PaymentIntentStatusFailed, 1)
	require.NoError(t, repo.AppendPaymentIntentRecord(ctx, &first))
	second := paymentRecord(sub, "dup", enums.PaymentIntentStatusFailed, 1)
	err := repo.AppendPaymentIntentRecord(ctx, &second)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func paymentRecord(sub models.Subscription, key string, status enums.PaymentIntentStatus, attempt int) models.PaymentIntentRecord {
	return models.PaymentIntentRecord{
		GatewayIntentID:    "pi_" + key,
		Provider:           enums.PaymentProviderStripe,
		SubscriptionID:     sub.ID,
		UserID:             sub.UserID,
		PackageID:          sub.PackageID,
		Amount:             decimal.RequireFromString("45.00"),
		AmountMinor:        4500,
		Currency:           "USD",
		Status:             status,
		Attempt:            attempt,
		IdempotencyKey:     key,
		RenewedFromEndDate: sub.EndDate,
		Metadata:           map[string]string{"kind": "sub"},
	}
}
