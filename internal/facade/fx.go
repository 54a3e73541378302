package facade

import (
	"time"

	"go.uber.org/fx"

	fundinggatedomain "github.com/smallbiznis/pspcore/internal/fundinggate/domain"
	pspconfig "github.com/smallbiznis/pspcore/internal/config"
)

func newConfig(cfg pspconfig.Config) Config {
	return Config{
		CommitGateStrict:    cfg.CommitGateStrictDefault,
		ReservationTTL:      time.Duration(cfg.ReservationTTLHours) * time.Hour,
		DefaultFundingModel: fundinggatedomain.FundingModel(cfg.DefaultFundingModel),
		DefaultRail:         cfg.DefaultRail,
		EmitEvents:          true,
	}
}

var Module = fx.Module("facade",
	fx.Provide(newConfig, New),
)
