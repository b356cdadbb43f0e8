package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// Package is a purchasable tutoring plan. The renewal engine only reads it.
type Package struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                  string                 `gorm:"column:name;not null"`
	CurrentPrice          decimal.Decimal        `gorm:"column:current_price;type:numeric(12,2);not null"`
	Currency              string                 `gorm:"column:currency;not null;default:'USD'"`
	SubscriptionFrequency enums.BillingFrequency `gorm:"column:subscription_frequency;not null"`
	TotalClasses          int                    `gorm:"column:total_classes;not null;default:0"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Package) TableName() string { return "packages" }
