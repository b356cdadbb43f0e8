package billing

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
)

// NewTestDB opens an isolated in-memory sqlite database with the renewal tables.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT,
  stripe_customer_id TEXT,
  default_payment_method_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	packages := `
CREATE TABLE IF NOT EXISTS packages (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  current_price TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  subscription_frequency TEXT NOT NULL,
  total_classes INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  package_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  end_date DATETIME NOT NULL,
  next_billing_date DATETIME,
  auto_renew INTEGER NOT NULL DEFAULT 0,
  auto_renew_attempts INTEGER NOT NULL DEFAULT 0,
  last_renewal_attempt DATETIME,
  renewal_failure_reason TEXT,
  classes_completed INTEGER NOT NULL DEFAULT 0,
  classes_remaining INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	intents := `
CREATE TABLE IF NOT EXISTS payment_intent_records (
  id TEXT PRIMARY KEY,
  gateway_intent_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  subscription_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  package_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  idempotency_key TEXT NOT NULL UNIQUE,
  renewed_from_end_date DATETIME NOT NULL,
  failure_reason TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	for _, ddl := range []string{users, packages, subscriptions, intents} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Fixture describes one subscription row and its owner/package.
type Fixture struct {
	Price            string
	Currency         string
	Frequency        enums.BillingFrequency
	TotalClasses     int
	Status           enums.SubscriptionStatus
	AutoRenew        bool
	Attempts         int
	EndDate          time.Time
	NextBillingDate  *time.Time
	CustomerID       string
	PaymentMethodID  string
	ClassesCompleted int
}

// SeedSubscription inserts a user, package and subscription and returns the subscription.
func SeedSubscription(t *testing.T, db *gorm.DB, f Fixture) models.Subscription {
	t.Helper()

	if f.Price == "" {
		f.Price = "45.00"
	}
	if f.Currency == "" {
		f.Currency = "USD"
	}
	if f.Frequency == "" {
		f.Frequency = enums.BillingFrequencyMonthly
	}
	if f.Status == "" {
		f.Status = enums.SubscriptionStatusActive
	}

	user := models.User{
		ID:    uuid.New(),
		Email: fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Name:  "Student",
	}
	if f.CustomerID != "" {
		user.StripeCustomerID = &f.CustomerID
	}
	if f.PaymentMethodID != "" {
		user.DefaultPaymentMethodID = &f.PaymentMethodID
	}
	require.NoError(t, db.Create(&user).Error)

	pkg := models.Package{
		ID:                    uuid.New(),
		Name:                  "Package",
		CurrentPrice:          decimal.RequireFromString(f.Price),
		Currency:              f.Currency,
		SubscriptionFrequency: f.Frequency,
		TotalClasses:          f.TotalClasses,
	}
	require.NoError(t, db.Create(&pkg).Error)

	sub := models.Subscription{
		ID:                uuid.New(),
		UserID:            user.ID,
		PackageID:         pkg.ID,
		Status:            f.Status,
		EndDate:           f.EndDate.UTC(),
		NextBillingDate:   f.NextBillingDate,
		AutoRenew:         f.AutoRenew,
		AutoRenewAttempts: f.Attempts,
		ClassesCompleted:  f.ClassesCompleted,
	}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

func ptrTime(v time.Time) *time.Time { return &v }
