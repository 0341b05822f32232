package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("action", "sign_in"),
		attribute.String("customer_id", "cus_123"),
		attribute.String("outcome", "success"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "customer_id" {
			t.Fatalf("expected customer_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAction(ctx, "sign_in", "success")
	m.RecordUsageBytes(ctx, "processing", 10)
	m.RecordUpload(ctx, "support", "success")
	m.RecordDeletionEvent(ctx, "restore")
	m.RecordRateLimitDenied(ctx, "sign_in", "ip-rate")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "portal"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordAction(context.Background(), "sign_up", "invalid")

	h, err := NewHTTPMetrics(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}
	if h == nil {
		t.Fatalf("expected http metrics")
	}
}
