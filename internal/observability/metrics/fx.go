package metrics

import (
	"github.com/smallbiznis/pspcore/internal/config"
	"go.uber.org/fx"
)

// Module provides the meter provider and the PSP-core domain instruments.
var Module = fx.Module("metrics",
	fx.Provide(
		provideConfig,
		NewProvider,
		New,
	),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.OTLPEndpoint != "",
		ExporterEndpoint: cfg.OTLPEndpoint,
		ExporterProtocol: "grpc",
		ServiceName:      cfg.AppName,
		Environment:      cfg.Environment,
	}
}
