package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/:locale/actions/sign-in"),
		attribute.String("email", "a@example.com"),
		attribute.String("access_token", "secret"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "http.route" {
		t.Fatalf("expected http.route to be retained, got %s", attrs[0].Key)
	}
}

func TestSafeErrorRedactsTokens(t *testing.T) {
	if got := SafeError(errors.New("invalid refresh token abc")); got.Error() != "redacted error" {
		t.Fatalf("expected redacted error, got %q", got.Error())
	}
	plain := errors.New("bucket unavailable")
	if got := SafeError(plain); got != plain {
		t.Fatalf("expected original error to pass through")
	}
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
