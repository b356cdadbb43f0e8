package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classbridge/billing-renewals/pkg/db"
	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
	pkgerrors "github.com/classbridge/billing-renewals/pkg/errors"
)

// Repository handles renewal persistence.
type Repository interface {
	FindEligibleSubscriptions(ctx context.Context, query EligibilityQuery) ([]models.Subscription, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, patch SubscriptionPatch) error
	AppendPaymentIntentRecord(ctx context.Context, record *models.PaymentIntentRecord) error
	FindSucceededIntent(ctx context.Context, subscriptionID uuid.UUID, renewedFrom time.Time) (*models.PaymentIntentRecord, error)
	ListPaymentIntentRecords(ctx context.Context, subscriptionID uuid.UUID) ([]models.PaymentIntentRecord, error)
}

// EligibilityQuery bounds the due-subscription scan.
type EligibilityQuery struct {
	Now         time.Time
	GracePeriod time.Duration
	MaxAttempts int
	Limit       int
}

// Cutoff is the latest next_billing_date that is considered due.
func (q EligibilityQuery) Cutoff() time.Time {
	return q.Now.Add(q.GracePeriod)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindEligibleSubscriptions(ctx context.Context, query EligibilityQuery) ([]models.Subscription, error) {
	if query.MaxAttempts <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max attempts must be positive")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Package").
		Where("status = ?", enums.SubscriptionStatusActive).
		Where("auto_renew = ?", true).
		Where("next_billing_date IS NOT NULL AND next_billing_date <= ?", query.Cutoff().UTC()).
		Where("auto_renew_attempts < ?", query.MaxAttempts).
		Order("next_billing_date ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query eligible subscriptions")
	}
	return subs, nil
}

func (r *repository) UpdateSubscription(ctx context.Context, id uuid.UUID, patch SubscriptionPatch) error {
	columns := patch.Columns()
	if len(columns) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(columns)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update subscription")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("subscription %s not found", id))
	}
	return nil
}

func (r *repository) AppendPaymentIntentRecord(ctx context.Context, record *models.PaymentIntentRecord) error {
	if record == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent record is required")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.RenewedFromEndDate = record.RenewedFromEndDate.UTC()
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment intent record already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payment intent record")
	}
	return nil
}

// FindSucceededIntent returns nil when no charge succeeded for that billing period.
func (r *repository) FindSucceededIntent(ctx context.Context, subscriptionID uuid.UUID, renewedFrom time.Time) (*models.PaymentIntentRecord, error) {
	var record models.PaymentIntentRecord
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Where("renewed_from_end_date = ?", renewedFrom.UTC()).
		Where("status = ?", enums.PaymentIntentStatusSucceeded).
		Order("created_at DESC").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find succeeded payment intent")
	}
	return &record, nil
}

func (r *repository) ListPaymentIntentRecords(ctx context.Context, subscriptionID uuid.UUID) ([]models.PaymentIntentRecord, error) {
	var records []models.PaymentIntentRecord
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, attempt ASC").
		Find(&records).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment intent records")
	}
	return records, nil
}
