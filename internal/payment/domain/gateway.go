// Package domain defines the payment gateway contract used by customer
// registration and the invoice engine.
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrGateway          = errors.New("payment_gateway_error")
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidConfig    = errors.New("payment_adapter_invalid_config")
)

// ChargeRequest describes one charge attempt against a registered customer.
type ChargeRequest struct {
	CustomerRef      string
	PaymentMethodRef string
	Amount           decimal.Decimal
	Currency         string
	Metadata         map[string]string
}

// ChargeResult reports the outcome of a charge attempt. Succeeded=false with
// a nil error means the provider declined the charge.
type ChargeResult struct {
	Succeeded bool
	Reference string
}

// Gateway is the outbound payment provider contract.
type Gateway interface {
	// TokenizePaymentMethod converts a raw payment token into a reusable
	// payment method reference.
	TokenizePaymentMethod(ctx context.Context, rawToken string) (string, error)

	// RegisterCustomer creates the customer on the provider side and attaches
	// the payment method as its default.
	RegisterCustomer(ctx context.Context, email, name, paymentMethodRef string) (string, error)

	// Charge attempts to collect the amount from the customer's default
	// payment method.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// Refund reverses a previously successful charge.
	Refund(ctx context.Context, chargeRef string) error
}

// Config carries provider credentials to a factory.
type Config struct {
	APIKey string
}

// Factory builds a Gateway for one provider.
type Factory interface {
	Provider() string
	NewGateway(cfg Config) (Gateway, error)
}
