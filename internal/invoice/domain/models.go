// Package domain contains the invoice engine models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	StatusOpen InvoiceStatus = "open"
	StatusPaid InvoiceStatus = "paid"
	StatusVoid InvoiceStatus = "void"
)

// Invoice snapshots the amount owed at generation time. SubscriptionID is
// nil for ad hoc invoices created outside the billing sweep.
type Invoice struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID     snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	SubscriptionID *snowflake.ID   `gorm:"index" json:"subscription_id,omitempty"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency       string          `gorm:"type:text;not null" json:"currency"`
	Status         InvoiceStatus   `gorm:"type:text;not null" json:"status"`
	PaymentRef     string          `gorm:"type:text" json:"payment_ref,omitempty"`
	PaidAt         *time.Time      `gorm:"" json:"paid_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }
