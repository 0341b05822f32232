package aws

import "go.uber.org/fx"

var Module = fx.Module("providers.aws",
	fx.Provide(NewLoader),
)
