package deletion

import (
	"github.com/smallbiznis/portal/internal/deletion/domain"
	"github.com/smallbiznis/portal/internal/deletion/service"
	"github.com/smallbiznis/portal/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("deletion.service",
	fx.Provide(
		func(l ratelimit.Locker) domain.Locker { return l },
		fx.Annotate(ratelimit.LockTTL, fx.ResultTags(`name:"deletion_lock_ttl"`)),
	),
	fx.Provide(service.New),
)
