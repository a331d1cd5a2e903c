// Package domain contains the subscription lifecycle models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription binds a customer to a product price. CurrentPeriodEnd is the
// moment the subscription next comes due; AutoRenew gates whether the sweep
// renews or retires it.
type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey" json:"id"`
	CustomerID       snowflake.ID       `gorm:"not null;index" json:"customer_id"`
	ProductID        snowflake.ID       `gorm:"not null;index" json:"product_id"`
	PriceID          snowflake.ID       `gorm:"not null;index" json:"price_id"`
	Status           SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	AutoRenew        bool               `gorm:"not null;default:true" json:"auto_renew"`
	CurrentPeriodEnd time.Time          `gorm:"not null;index" json:"current_period_end"`
	CanceledAt       *time.Time         `gorm:"" json:"canceled_at,omitempty"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// IsDue reports whether the subscription needs billing attention at now.
func IsDue(sub Subscription, now time.Time) bool {
	return sub.Status == StatusActive && !now.Before(sub.CurrentPeriodEnd)
}
