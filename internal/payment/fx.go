package payment

import (
	"context"
	"errors"

	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/payment/domain"
	"github.com/smallbiznis/portal/internal/payment/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(NewGateway),
)

// NewGateway returns the Stripe gateway. Outside production a missing key
// yields a gateway whose calls fail with ErrNotConfigured.
func NewGateway(cfg config.Config, log *zap.Logger) (domain.Gateway, error) {
	gw, err := stripe.New(cfg, log)
	if errors.Is(err, domain.ErrNotConfigured) && !cfg.IsProduction() {
		log.Warn("stripe secret key missing; payment actions are disabled")
		return unconfigured{}, nil
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}

type unconfigured struct{}

func (unconfigured) CreateCustomer(context.Context, domain.CreateCustomerInput) (*domain.Customer, error) {
	return nil, domain.ErrNotConfigured
}

func (unconfigured) CreateSetupIntent(context.Context, string) (*domain.SetupIntent, error) {
	return nil, domain.ErrNotConfigured
}

func (unconfigured) AttachDefaultPaymentMethod(context.Context, string, string) error {
	return domain.ErrNotConfigured
}

func (unconfigured) Subscribe(context.Context, domain.SubscribeInput) (*domain.Subscription, error) {
	return nil, domain.ErrNotConfigured
}

func (unconfigured) ListInvoices(context.Context, string, int) ([]domain.Invoice, error) {
	return nil, domain.ErrNotConfigured
}

func (unconfigured) ListPaymentMethods(context.Context, string) ([]domain.PaymentMethod, error) {
	return nil, domain.ErrNotConfigured
}
