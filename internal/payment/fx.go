// Package payment wires the configured payment gateway into the fx graph.
package payment

import (
	"github.com/smallbiznis/orbit/internal/config"
	"github.com/smallbiznis/orbit/internal/payment/adapters"
	"github.com/smallbiznis/orbit/internal/payment/adapters/sandbox"
	"github.com/smallbiznis/orbit/internal/payment/adapters/stripe"
	"github.com/smallbiznis/orbit/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(NewAdapterRegistry),
	fx.Provide(NewGateway),
)

func NewAdapterRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewFactory(),
		sandbox.NewFactory(),
	)
}

// NewGateway builds the gateway selected by PAYMENT_PROVIDER.
func NewGateway(registry *adapters.Registry, cfg config.Config, log *zap.Logger) (domain.Gateway, error) {
	gateway, err := registry.NewGateway(cfg.PaymentProvider, domain.Config{
		APIKey: cfg.StripeAPIKey,
	})
	if err != nil {
		return nil, err
	}

	log.Info("payment gateway configured", zap.String("provider", cfg.PaymentProvider))
	return gateway, nil
}
