package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User carries the payment profile used for off-session renewals.
type User struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email                  string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name                   string    `gorm:"column:name"`
	StripeCustomerID       *string   `gorm:"column:stripe_customer_id"`
	DefaultPaymentMethodID *string   `gorm:"column:default_payment_method_id"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (User) TableName() string { return "users" }

// PaymentProfile returns the customer and instrument ids when both are present.
func (u *User) PaymentProfile() (customerID, instrumentID string, ok bool) {
	if u == nil || u.StripeCustomerID == nil || u.DefaultPaymentMethodID == nil {
		return "", "", false
	}
	customerID = strings.TrimSpace(*u.StripeCustomerID)
	instrumentID = strings.TrimSpace(*u.DefaultPaymentMethodID)
	if customerID == "" || instrumentID == "" {
		return "", "", false
	}
	return customerID, instrumentID, true
}
