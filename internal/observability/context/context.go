// Package context carries request correlation values used by logs, traces and metrics.
package context

import "context"

type ctxKey string

const (
	requestIDKey     ctxKey = "request_id"
	correlationIDKey ctxKey = "correlation_id"
	customerIDKey    ctxKey = "customer_id"
	userIDKey        ctxKey = "user_id"
	localeKey        ctxKey = "locale"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey)
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withString(ctx, correlationIDKey, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, correlationIDKey)
}

func WithCustomerID(ctx context.Context, id string) context.Context {
	return withString(ctx, customerIDKey, id)
}

func CustomerIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, customerIDKey)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return withString(ctx, userIDKey, id)
}

func UserIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, userIDKey)
}

func WithLocale(ctx context.Context, locale string) context.Context {
	return withString(ctx, localeKey, locale)
}

func LocaleFromContext(ctx context.Context) string {
	return stringFrom(ctx, localeKey)
}

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
