package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SetupIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type Subscription struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	BillingCycleAnchor time.Time `json:"billing_cycle_anchor"`
}

type Invoice struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	Status      string    `json:"status"`
	Currency    string    `json:"currency"`
	Total       int64     `json:"total"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	HostedURL   string    `json:"hosted_url"`
	PDFURL      string    `json:"pdf_url"`
}

type PaymentMethod struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int    `json:"exp_month"`
	ExpYear   int    `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}

type CreateCustomerInput struct {
	Name         string
	BillingEmail string
	UserSub      string
}

type SubscribeInput struct {
	CustomerID      string
	PaymentMethodID string
	Anchor          time.Time
}

// Gateway is the payments contract used by company creation, payment setup
// and the billing screens.
type Gateway interface {
	CreateCustomer(ctx context.Context, in CreateCustomerInput) (*Customer, error)
	CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error)
	AttachDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	Subscribe(ctx context.Context, in SubscribeInput) (*Subscription, error)
	ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
}

// NextBillingAnchor returns midnight UTC on the first day of the month after now.
func NextBillingAnchor(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

type ErrorKind string

const (
	KindCardDeclined   ErrorKind = "card_declined"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindAuthentication ErrorKind = "authentication"
	KindRateLimited    ErrorKind = "rate_limited"
	KindUnknown        ErrorKind = "unknown"
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payment %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("payment %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(op string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

var (
	ErrInvalidCustomer      = errors.New("invalid_customer")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrNotConfigured        = errors.New("payments_not_configured")
)
