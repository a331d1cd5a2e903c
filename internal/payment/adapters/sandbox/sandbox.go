// Package sandbox provides a deterministic in-process payment gateway for
// local development and tests.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	paymentdomain "github.com/smallbiznis/orbit/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "sandbox"
}

func (f *Factory) NewGateway(paymentdomain.Config) (paymentdomain.Gateway, error) {
	return NewGateway(), nil
}

// Gateway records every call and always succeeds. The Fail* switches let
// tests force specific failure modes.
type Gateway struct {
	mu  sync.Mutex
	seq int

	FailCharge bool
	FailRefund bool

	Charges []paymentdomain.ChargeRequest
	Refunds []string
}

func NewGateway() *Gateway {
	return &Gateway{}
}

func (g *Gateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_test_%06d", prefix, g.seq)
}

func (g *Gateway) TokenizePaymentMethod(ctx context.Context, rawToken string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if strings.HasPrefix(rawToken, "pm_") {
		return rawToken, nil
	}
	return g.next("pm"), nil
}

func (g *Gateway) RegisterCustomer(ctx context.Context, email, name, paymentMethodRef string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.next("cus"), nil
}

func (g *Gateway) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (*paymentdomain.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Charges = append(g.Charges, req)
	if g.FailCharge {
		return &paymentdomain.ChargeResult{Succeeded: false}, nil
	}
	return &paymentdomain.ChargeResult{Succeeded: true, Reference: g.next("pi")}, nil
}

func (g *Gateway) Refund(ctx context.Context, chargeRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailRefund {
		return paymentdomain.ErrGateway
	}
	g.Refunds = append(g.Refunds, chargeRef)
	return nil
}
