package observability

import (
	"testing"

	"github.com/smallbiznis/portal/internal/config"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestLoadConfigCarriesPortalAttributes(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg := LoadConfig(config.Config{
		AppName:       "portal",
		AppVersion:    "1.2.0",
		Environment:   "production",
		DefaultLocale: "ja",
		AWS:           config.AWSConfig{Region: "ap-northeast-1"},
		Cognito:       config.CognitoConfig{Provider: "cognito"},
	})

	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.Debug())

	attrs := cfg.ResourceAttributes()
	assert.Contains(t, attrs, attribute.String("service.version", "1.2.0"))
	assert.Contains(t, attrs, attribute.String("cloud.region", "ap-northeast-1"))
	assert.Contains(t, attrs, attribute.String("portal.identity_provider", "cognito"))
	assert.Contains(t, attrs, attribute.String("portal.default_locale", "ja"))
}

func TestResourceAttributesSkipEmptyValues(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "test"})

	assert.Equal(t, "portal", cfg.ServiceName)
	assert.True(t, cfg.Debug())
	for _, attr := range cfg.ResourceAttributes() {
		assert.NotEqual(t, attribute.Key("cloud.region"), attr.Key)
		assert.NotEmpty(t, attr.Value.AsString())
	}
}
