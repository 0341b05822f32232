package identity

import (
	"fmt"

	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/identity/cognito"
	"github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/identity/memory"
	"github.com/smallbiznis/portal/internal/identity/session"
	awsprovider "github.com/smallbiznis/portal/internal/providers/aws"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("identity",
	fx.Provide(NewProvider),
	fx.Provide(session.NewManager),
	fx.Provide(session.NewAccessor),
)

// NewProvider selects the identity backend. The memory backend is refused in
// production.
func NewProvider(cfg config.Config, loader *awsprovider.Loader, clk clock.Clock, log *zap.Logger) (domain.Provider, error) {
	switch cfg.Cognito.Provider {
	case "", "cognito":
		return cognito.New(cfg, loader, log)
	case "memory":
		if cfg.IsProduction() {
			return nil, fmt.Errorf("identity provider %q is not allowed in production", cfg.Cognito.Provider)
		}
		log.Warn("using in-memory identity provider")
		return memory.New(clk), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Cognito.Provider)
	}
}
