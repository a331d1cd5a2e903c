// Package domain contains the customer registry models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillingFrequency is how often a customer receives invoice notifications.
type BillingFrequency string

const (
	FrequencyMonthly   BillingFrequency = "monthly"
	FrequencyQuarterly BillingFrequency = "quarterly"
	FrequencyYearly    BillingFrequency = "yearly"
)

// Customer is a billable account holder. PaymentMethodRef and
// ProviderCustomerID are the gateway-side references obtained during
// registration.
type Customer struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name               string            `gorm:"type:text;not null" json:"name"`
	Email              string            `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PaymentMethodRef   string            `gorm:"type:text" json:"payment_method_ref,omitempty"`
	ProviderCustomerID string            `gorm:"type:text" json:"provider_customer_id,omitempty"`
	BillingDay         int               `gorm:"not null;default:1" json:"billing_day"`
	BillingFrequency   BillingFrequency  `gorm:"type:text;not null;default:'monthly'" json:"billing_frequency"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
