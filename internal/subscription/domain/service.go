package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/orbit/internal/invoice/domain"
)

type CreateSubscriptionRequest struct {
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	PriceID    string `json:"price_id"`
	AutoRenew  *bool  `json:"auto_renew,omitempty"`
}

// CreateSubscriptionResponse returns the subscription together with the
// first invoice generated in the same transaction.
type CreateSubscriptionResponse struct {
	Subscription Subscription          `json:"subscription"`
	Invoice      invoicedomain.Invoice `json:"invoice"`
}

type CancelSubscriptionRequest struct {
	ID        string `json:"-"`
	Immediate bool   `json:"immediate"`
}

// AdvanceResult reports what AdvancePeriod did with a due subscription.
type AdvanceResult struct {
	Canceled       bool
	NextPeriodEnd  time.Time
	SubscriptionID string
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (CreateSubscriptionResponse, error)
	GetByID(ctx context.Context, id string) (Subscription, error)
	Cancel(ctx context.Context, req CancelSubscriptionRequest) (Subscription, error)

	// ListDue returns active subscriptions whose period has elapsed at now.
	ListDue(ctx context.Context, now time.Time) ([]Subscription, error)

	// AdvancePeriod renews an auto-renewing subscription by one interval, or
	// retires one whose renewal was switched off.
	AdvancePeriod(ctx context.Context, id string) (AdvanceResult, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrNotFound        = errors.New("not_found")
	ErrNotActive       = errors.New("subscription_not_active")
)
