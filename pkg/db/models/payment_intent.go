package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// PaymentIntentRecord is the append-only audit row written for every gateway charge attempt.
type PaymentIntentRecord struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GatewayIntentID    string                    `gorm:"column:gateway_intent_id;not null"`
	Provider           enums.PaymentProvider     `gorm:"column:provider;not null"`
	SubscriptionID     uuid.UUID                 `gorm:"column:subscription_id;type:uuid;not null;index"`
	UserID             uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	PackageID          uuid.UUID                 `gorm:"column:package_id;type:uuid;not null"`
	Amount             decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountMinor        int64                     `gorm:"column:amount_minor;not null"`
	Currency           string                    `gorm:"column:currency;not null"`
	Status             enums.PaymentIntentStatus `gorm:"column:status;not null"`
	Attempt            int                       `gorm:"column:attempt;not null"`
	IdempotencyKey     string                    `gorm:"column:idempotency_key;not null;uniqueIndex"`
	RenewedFromEndDate time.Time                 `gorm:"column:renewed_from_end_date;not null"`
	FailureReason      *string                   `gorm:"column:failure_reason"`
	Metadata           map[string]string         `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name.
func (PaymentIntentRecord) TableName() string { return "payment_intent_records" }
