package stripe

import (
	"errors"
	"net/http"

	"github.com/smallbiznis/portal/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v72"
)

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return domain.NewError(op, domain.KindUnknown, err)
	}

	switch {
	case stripeErr.Type == stripego.ErrorTypeCard:
		return domain.NewError(op, domain.KindCardDeclined, err)
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		return domain.NewError(op, domain.KindAuthentication, err)
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		return domain.NewError(op, domain.KindRateLimited, err)
	case stripeErr.Type == stripego.ErrorTypeInvalidRequest, stripeErr.Type == stripego.ErrorTypeIdempotency:
		return domain.NewError(op, domain.KindInvalidRequest, err)
	default:
		return domain.NewError(op, domain.KindUnknown, err)
	}
}
