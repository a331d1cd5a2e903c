// Package domain contains the product catalog models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PriceInterval is the recurrence unit of a price.
type PriceInterval string

const (
	IntervalMonth PriceInterval = "month"
	IntervalYear  PriceInterval = "year"
)

// Product is a sellable item with one or more prices.
type Product struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"type:text;not null" json:"name"`
	Description *string           `gorm:"type:text" json:"description,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	Prices      []Price           `gorm:"foreignKey:ProductID" json:"prices"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// Price is an immutable billing option of a product.
type Price struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProductID     snowflake.ID    `gorm:"not null;index" json:"product_id"`
	Currency      string          `gorm:"type:text;not null" json:"currency"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Interval      PriceInterval   `gorm:"type:text;not null" json:"interval"`
	IntervalCount int             `gorm:"not null;default:1" json:"interval_count"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Price) TableName() string { return "prices" }

// NextPeriodEnd advances from using calendar arithmetic, so monthly periods
// track month boundaries instead of a fixed day count.
func (p Price) NextPeriodEnd(from time.Time) time.Time {
	count := p.IntervalCount
	if count < 1 {
		count = 1
	}
	switch p.Interval {
	case IntervalYear:
		return from.AddDate(count, 0, 0)
	default:
		return from.AddDate(0, count, 0)
	}
}
