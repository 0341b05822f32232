package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/portal/internal/config"
	"go.opentelemetry.io/otel/attribute"
)

// Config is the observability slice of the portal configuration. Identity
// fields come from config.Config; only the log and exporter knobs are read
// from the environment here.
type Config struct {
	ServiceName      string
	Environment      string
	Version          string
	Region           string
	IdentityProvider string
	DefaultLocale    string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "portal"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		Region:               strings.TrimSpace(cfg.AWS.Region),
		IdentityProvider:     strings.TrimSpace(cfg.Cognito.Provider),
		DefaultLocale:        strings.TrimSpace(cfg.DefaultLocale),
		LogLevel:             strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getenv("LOG_FORMAT", "json")),
		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", strings.TrimSpace(cfg.OTLPEndpoint)),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
}

// ResourceAttributes describes this portal deployment on every span and
// metric. Empty values are left out.
func (c Config) ResourceAttributes() []attribute.KeyValue {
	pairs := []struct{ key, value string }{
		{"service.name", c.ServiceName},
		{"service.version", c.Version},
		{"deployment.environment", c.Environment},
		{"cloud.provider", "aws"},
		{"cloud.region", c.Region},
		{"portal.identity_provider", c.IdentityProvider},
		{"portal.default_locale", c.DefaultLocale},
	}
	attrs := make([]attribute.KeyValue, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		attrs = append(attrs, attribute.String(p.key, p.value))
	}
	return attrs
}

func (c Config) Debug() bool {
	if strings.ToLower(strings.TrimSpace(c.LogLevel)) == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}
