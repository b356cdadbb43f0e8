package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// Subscription is a student's paid tutoring package and its renewal bookkeeping.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PackageID            uuid.UUID                `gorm:"column:package_id;type:uuid;not null;index"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null;default:'PENDING'"`
	EndDate              time.Time                `gorm:"column:end_date;not null"`
	NextBillingDate      *time.Time               `gorm:"column:next_billing_date;index"`
	AutoRenew            bool                     `gorm:"column:auto_renew;not null;default:false"`
	AutoRenewAttempts    int                      `gorm:"column:auto_renew_attempts;not null;default:0"`
	LastRenewalAttempt   *time.Time               `gorm:"column:last_renewal_attempt"`
	RenewalFailureReason *string                  `gorm:"column:renewal_failure_reason"`
	ClassesCompleted     int                      `gorm:"column:classes_completed;not null;default:0"`
	ClassesRemaining     int                      `gorm:"column:classes_remaining;not null;default:0"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	User    *User    `gorm:"foreignKey:UserID"`
	Package *Package `gorm:"foreignKey:PackageID"`
}

// TableName pins the table name.
func (Subscription) TableName() string { return "subscriptions" }
