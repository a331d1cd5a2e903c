package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	CustomerID     string          `json:"customer_id"`
	SubscriptionID *string         `json:"subscription_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// GenerateParams carries the snapshot data for a subscription invoice created
// inside an existing transaction.
type GenerateParams struct {
	SubscriptionID snowflake.ID
	CustomerID     snowflake.ID
	Amount         decimal.Decimal
	Currency       string
}

type Service interface {
	// Create records an ad hoc open invoice.
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)

	// Generate creates an open invoice for the subscription's current price.
	// It never contacts the payment gateway.
	Generate(ctx context.Context, subscriptionID string) (Invoice, error)

	// GenerateInTx creates the invoice inside the caller's transaction, used
	// by subscription creation so the first invoice is atomic with the
	// subscription row.
	GenerateInTx(ctx context.Context, tx *gorm.DB, params GenerateParams) (Invoice, error)

	// Process attempts to collect an open invoice. Non-open invoices are a
	// no-op returning false. Gateway failures leave the invoice open and
	// return false with a nil error so the sweep can retry later.
	Process(ctx context.Context, invoiceID string) (bool, error)

	// Delete removes an invoice, refunding it first when paid. Deleting a
	// subscription invoice force-cancels the subscription.
	Delete(ctx context.Context, invoiceID string) (bool, error)

	GetByID(ctx context.Context, id string) (Invoice, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Invoice, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrNotFound        = errors.New("not_found")
	ErrCustomerInvalid = errors.New("invalid_customer")

	// ErrConsistency means external money movement and local state diverged,
	// e.g. a refund went through but the local delete failed.
	ErrConsistency = errors.New("billing_state_inconsistent")
)
