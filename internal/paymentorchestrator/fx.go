package paymentorchestrator

import (
	"time"

	"go.uber.org/fx"

	pspconfig "github.com/smallbiznis/pspcore/internal/config"
	"github.com/smallbiznis/pspcore/internal/paymentorchestrator/service"
)

func newConfig(cfg pspconfig.Config) service.Config {
	return service.Config{
		SubmitTimeout: time.Duration(cfg.ProviderSubmitTimeoutSeconds) * time.Second,
	}
}

var Module = fx.Module("paymentorchestrator.service",
	fx.Provide(newConfig, service.NewService),
)
