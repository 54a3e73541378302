package fundinggate

import (
	"github.com/smallbiznis/pspcore/internal/fundinggate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fundinggate.service",
	fx.Provide(service.NewService),
)
