package providers

import (
	awsprovider "github.com/smallbiznis/portal/internal/providers/aws"
	"github.com/smallbiznis/portal/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	awsprovider.Module,
	email.Module,
)
