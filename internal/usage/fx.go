package usage

import (
	"github.com/smallbiznis/portal/internal/usage/notifier"
	"github.com/smallbiznis/portal/internal/usage/repository"
	"github.com/smallbiznis/portal/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(notifier.NewEmail),
	fx.Provide(service.New),
)
