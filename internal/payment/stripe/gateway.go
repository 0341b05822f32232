// Package stripe implements the payments gateway on Stripe.
package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"
)

const defaultInvoiceLimit = 24

type Gateway struct {
	client            *lazyClient
	processingPriceID string
	storagePriceID    string
	log               *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) (*Gateway, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, domain.ErrNotConfigured
	}
	log = log.Named("payment.stripe")
	secret := cfg.Stripe.SecretKey
	return &Gateway{
		client:            &lazyClient{build: func() Client { return newAPIClient(log, secret) }},
		processingPriceID: cfg.Stripe.ProcessingPriceID,
		storagePriceID:    cfg.Stripe.StoragePriceID,
		log:               log,
	}, nil
}

// NewWithClient wires a prepared client, used by tests.
func NewWithClient(c Client, cfg config.StripeConfig, log *zap.Logger) *Gateway {
	return &Gateway{
		client:            &lazyClient{build: func() Client { return c }},
		processingPriceID: cfg.ProcessingPriceID,
		storagePriceID:    cfg.StoragePriceID,
		log:               log.Named("payment.stripe"),
	}
}

func (g *Gateway) fail(op string, err error) error {
	mapped := mapError(op, err)
	g.log.Warn("stripe call failed",
		zap.String("op", op),
		zap.String("kind", string(domain.KindOf(mapped))),
		zap.Error(err),
	)
	return mapped
}

func (g *Gateway) CreateCustomer(ctx context.Context, in domain.CreateCustomerInput) (*domain.Customer, error) {
	params := &stripego.CustomerParams{
		Name:  stripego.String(strings.TrimSpace(in.Name)),
		Email: stripego.String(strings.TrimSpace(in.BillingEmail)),
	}
	params.Context = ctx
	if in.UserSub != "" {
		params.AddMetadata("user_sub", in.UserSub)
	}
	customer, err := g.client.get().NewCustomer(params)
	if err != nil {
		return nil, g.fail("create_customer", err)
	}
	return &domain.Customer{ID: customer.ID, Name: customer.Name, Email: customer.Email}, nil
}

func (g *Gateway) CreateSetupIntent(ctx context.Context, customerID string) (*domain.SetupIntent, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.ErrInvalidCustomer
	}
	params := &stripego.SetupIntentParams{
		Customer:           stripego.String(customerID),
		PaymentMethodTypes: stripego.StringSlice([]string{string(stripego.PaymentMethodTypeCard)}),
		Usage:              stripego.String(string(stripego.SetupIntentUsageOffSession)),
	}
	params.Context = ctx
	intent, err := g.client.get().NewSetupIntent(params)
	if err != nil {
		return nil, g.fail("create_setup_intent", err)
	}
	return &domain.SetupIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// AttachDefaultPaymentMethod attaches the method and makes it the invoice default.
func (g *Gateway) AttachDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	if strings.TrimSpace(customerID) == "" {
		return domain.ErrInvalidCustomer
	}
	if strings.TrimSpace(paymentMethodID) == "" {
		return domain.ErrInvalidPaymentMethod
	}

	attach := &stripego.PaymentMethodAttachParams{Customer: stripego.String(customerID)}
	attach.Context = ctx
	if _, err := g.client.get().AttachPaymentMethod(paymentMethodID, attach); err != nil {
		return g.fail("attach_payment_method", err)
	}

	update := &stripego.CustomerParams{
		InvoiceSettings: &stripego.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripego.String(paymentMethodID),
		},
	}
	update.Context = ctx
	if _, err := g.client.get().UpdateCustomer(customerID, update); err != nil {
		return g.fail("set_default_payment_method", err)
	}
	return nil
}

// Subscribe starts the two-component subscription anchored on in.Anchor.
func (g *Gateway) Subscribe(ctx context.Context, in domain.SubscribeInput) (*domain.Subscription, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, domain.ErrInvalidCustomer
	}
	items := make([]*stripego.SubscriptionItemsParams, 0, 2)
	for _, price := range []string{g.processingPriceID, g.storagePriceID} {
		if price == "" {
			continue
		}
		items = append(items, &stripego.SubscriptionItemsParams{Price: stripego.String(price)})
	}
	if len(items) == 0 {
		return nil, domain.ErrNotConfigured
	}

	params := &stripego.SubscriptionParams{
		Customer:           stripego.String(in.CustomerID),
		Items:              items,
		BillingCycleAnchor: stripego.Int64(in.Anchor.Unix()),
		ProrationBehavior:  stripego.String("none"),
	}
	if in.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripego.String(in.PaymentMethodID)
	}
	params.Context = ctx
	sub, err := g.client.get().NewSubscription(params)
	if err != nil {
		return nil, g.fail("subscribe", err)
	}
	return &domain.Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		BillingCycleAnchor: time.Unix(sub.BillingCycleAnchor, 0).UTC(),
	}, nil
}

func (g *Gateway) ListInvoices(ctx context.Context, customerID string, limit int) ([]domain.Invoice, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.ErrInvalidCustomer
	}
	if limit <= 0 || limit > 100 {
		limit = defaultInvoiceLimit
	}
	params := &stripego.InvoiceListParams{Customer: stripego.String(customerID)}
	params.Context = ctx
	params.Limit = stripego.Int64(int64(limit))
	params.Single = true

	invoices, err := g.client.get().ListInvoices(params)
	if err != nil {
		return nil, g.fail("list_invoices", err)
	}
	out := make([]domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, domain.Invoice{
			ID:          inv.ID,
			Number:      inv.Number,
			Status:      string(inv.Status),
			Currency:    string(inv.Currency),
			Total:       inv.Total,
			PeriodStart: time.Unix(inv.PeriodStart, 0).UTC(),
			PeriodEnd:   time.Unix(inv.PeriodEnd, 0).UTC(),
			HostedURL:   inv.HostedInvoiceURL,
			PDFURL:      inv.InvoicePDF,
		})
	}
	return out, nil
}

func (g *Gateway) ListPaymentMethods(ctx context.Context, customerID string) ([]domain.PaymentMethod, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.ErrInvalidCustomer
	}
	getParams := &stripego.CustomerParams{}
	getParams.Context = ctx
	customer, err := g.client.get().GetCustomer(customerID, getParams)
	if err != nil {
		return nil, g.fail("get_customer", err)
	}
	defaultID := ""
	if customer.InvoiceSettings != nil && customer.InvoiceSettings.DefaultPaymentMethod != nil {
		defaultID = customer.InvoiceSettings.DefaultPaymentMethod.ID
	}

	params := &stripego.PaymentMethodListParams{
		Customer: stripego.String(customerID),
		Type:     stripego.String(string(stripego.PaymentMethodTypeCard)),
	}
	params.Context = ctx
	methods, err := g.client.get().ListPaymentMethods(params)
	if err != nil {
		return nil, g.fail("list_payment_methods", err)
	}
	out := make([]domain.PaymentMethod, 0, len(methods))
	for _, pm := range methods {
		item := domain.PaymentMethod{ID: pm.ID, IsDefault: pm.ID == defaultID}
		if pm.Card != nil {
			item.Brand = string(pm.Card.Brand)
			item.Last4 = pm.Card.Last4
			item.ExpMonth = int(pm.Card.ExpMonth)
			item.ExpYear = int(pm.Card.ExpYear)
		}
		out = append(out, item)
	}
	return out, nil
}

var _ domain.Gateway = (*Gateway)(nil)
