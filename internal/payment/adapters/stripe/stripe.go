// Package stripe implements the payment gateway contract on the Stripe API.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"

	paymentdomain "github.com/smallbiznis/orbit/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) NewGateway(cfg paymentdomain.Config) (paymentdomain.Gateway, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	return &Gateway{client: stripe.NewClient(key, nil)}, nil
}

type Gateway struct {
	client *stripe.Client
}

func (g *Gateway) TokenizePaymentMethod(ctx context.Context, rawToken string) (string, error) {
	rawToken = strings.TrimSpace(rawToken)

	// Already a reusable payment method reference.
	if strings.HasPrefix(rawToken, "pm_") {
		return rawToken, nil
	}

	params := &stripe.PaymentMethodCreateParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCreateCardParams{
			Token: stripe.String(rawToken),
		},
	}
	method, err := g.client.V1PaymentMethods.Create(ctx, params)
	if err != nil {
		return "", gatewayErr("tokenize payment method", err)
	}
	return method.ID, nil
}

func (g *Gateway) RegisterCustomer(ctx context.Context, email, name, paymentMethodRef string) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	customer, err := g.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", gatewayErr("create customer", err)
	}

	if paymentMethodRef != "" {
		attach := &stripe.PaymentMethodAttachParams{
			Customer: stripe.String(customer.ID),
		}
		if _, err := g.client.V1PaymentMethods.Attach(ctx, paymentMethodRef, attach); err != nil {
			return "", gatewayErr("attach payment method", err)
		}

		update := &stripe.CustomerUpdateParams{
			InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
				DefaultPaymentMethod: stripe.String(paymentMethodRef),
			},
		}
		if _, err := g.client.V1Customers.Update(ctx, customer.ID, update); err != nil {
			return "", gatewayErr("set default payment method", err)
		}
	}

	return customer.ID, nil
}

func (g *Gateway) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (*paymentdomain.ChargeResult, error) {
	amountInCents := req.Amount.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.PaymentIntentCreateParams{
		Amount:     stripe.Int64(amountInCents),
		Currency:   stripe.String(strings.ToLower(req.Currency)),
		Customer:   stripe.String(req.CustomerRef),
		OffSession: stripe.Bool(true),
		Confirm:    stripe.Bool(true),
		Metadata:   req.Metadata,
	}
	if req.PaymentMethodRef != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodRef)
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		if isDecline(err) {
			return &paymentdomain.ChargeResult{Succeeded: false}, nil
		}
		return nil, gatewayErr("create payment intent", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return &paymentdomain.ChargeResult{Succeeded: false, Reference: intent.ID}, nil
	}

	return &paymentdomain.ChargeResult{Succeeded: true, Reference: intent.ID}, nil
}

func (g *Gateway) Refund(ctx context.Context, chargeRef string) error {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(chargeRef),
	}
	if _, err := g.client.V1Refunds.Create(ctx, params); err != nil {
		return gatewayErr("create refund", err)
	}
	return nil
}

func isDecline(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	switch stripeErr.Code {
	case stripe.ErrorCodeCardDeclined,
		stripe.ErrorCodeExpiredCard,
		stripe.ErrorCodeIncorrectCVC,
		stripe.ErrorCodeInsufficientFunds:
		return true
	}
	return false
}

func gatewayErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", paymentdomain.ErrGateway, op, err)
}
