package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type CreatePriceRequest struct {
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Interval      PriceInterval   `json:"interval"`
	IntervalCount int             `json:"interval_count"`
}

type CreateProductRequest struct {
	Name        string               `json:"name"`
	Description *string              `json:"description,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	Prices      []CreatePriceRequest `json:"prices"`
}

type Service interface {
	Create(ctx context.Context, req CreateProductRequest) (Product, error)
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	ResolvePrice(ctx context.Context, productID, priceID string) (Price, error)
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPrices   = errors.New("invalid_prices")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidInterval = errors.New("invalid_interval")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
	ErrPriceNotFound   = errors.New("price_not_found")
)
