package stripe

import (
	"sync"

	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// Client is the slice of the Stripe API the gateway calls. List calls drain
// the iterator so fakes can return plain slices.
type Client interface {
	NewCustomer(params *stripego.CustomerParams) (*stripego.Customer, error)
	UpdateCustomer(id string, params *stripego.CustomerParams) (*stripego.Customer, error)
	NewSetupIntent(params *stripego.SetupIntentParams) (*stripego.SetupIntent, error)
	AttachPaymentMethod(id string, params *stripego.PaymentMethodAttachParams) (*stripego.PaymentMethod, error)
	ListPaymentMethods(params *stripego.PaymentMethodListParams) ([]*stripego.PaymentMethod, error)
	GetCustomer(id string, params *stripego.CustomerParams) (*stripego.Customer, error)
	NewSubscription(params *stripego.SubscriptionParams) (*stripego.Subscription, error)
	ListInvoices(params *stripego.InvoiceListParams) ([]*stripego.Invoice, error)
}

type apiClient struct {
	api *client.API
}

// newAPIClient disables the library's own retries; failures surface on the
// first attempt.
func newAPIClient(log *zap.Logger, secretKey string) *apiClient {
	backendConfig := &stripego.BackendConfig{
		LeveledLogger:     log.Sugar(),
		MaxNetworkRetries: stripego.Int64(0),
	}
	api := client.New(secretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendConfig),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendConfig),
	})
	return &apiClient{api: api}
}

func (c *apiClient) NewCustomer(params *stripego.CustomerParams) (*stripego.Customer, error) {
	return c.api.Customers.New(params)
}

func (c *apiClient) UpdateCustomer(id string, params *stripego.CustomerParams) (*stripego.Customer, error) {
	return c.api.Customers.Update(id, params)
}

func (c *apiClient) GetCustomer(id string, params *stripego.CustomerParams) (*stripego.Customer, error) {
	return c.api.Customers.Get(id, params)
}

func (c *apiClient) NewSetupIntent(params *stripego.SetupIntentParams) (*stripego.SetupIntent, error) {
	return c.api.SetupIntents.New(params)
}

func (c *apiClient) AttachPaymentMethod(id string, params *stripego.PaymentMethodAttachParams) (*stripego.PaymentMethod, error) {
	return c.api.PaymentMethods.Attach(id, params)
}

func (c *apiClient) ListPaymentMethods(params *stripego.PaymentMethodListParams) ([]*stripego.PaymentMethod, error) {
	var out []*stripego.PaymentMethod
	iter := c.api.PaymentMethods.List(params)
	for iter.Next() {
		out = append(out, iter.PaymentMethod())
	}
	return out, iter.Err()
}

func (c *apiClient) NewSubscription(params *stripego.SubscriptionParams) (*stripego.Subscription, error) {
	return c.api.Subscriptions.New(params)
}

func (c *apiClient) ListInvoices(params *stripego.InvoiceListParams) ([]*stripego.Invoice, error) {
	var out []*stripego.Invoice
	iter := c.api.Invoices.List(params)
	for iter.Next() {
		out = append(out, iter.Invoice())
	}
	return out, iter.Err()
}

// lazyClient builds the API client on first use.
type lazyClient struct {
	build func() Client

	once   sync.Once
	client Client
}

func (l *lazyClient) get() Client {
	l.once.Do(func() { l.client = l.build() })
	return l.client
}
