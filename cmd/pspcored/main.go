package main

import (
	"github.com/smallbiznis/pspcore/internal/clock"
	"github.com/smallbiznis/pspcore/internal/cloudmetrics"
	"github.com/smallbiznis/pspcore/internal/config"
	"github.com/smallbiznis/pspcore/internal/events"
	"github.com/smallbiznis/pspcore/internal/facade"
	"github.com/smallbiznis/pspcore/internal/fundinggate"
	"github.com/smallbiznis/pspcore/internal/ledger"
	"github.com/smallbiznis/pspcore/internal/liability"
	"github.com/smallbiznis/pspcore/internal/logger"
	"github.com/smallbiznis/pspcore/internal/migration"
	"github.com/smallbiznis/pspcore/internal/observability/metrics"
	"github.com/smallbiznis/pspcore/internal/paymentorchestrator"
	"github.com/smallbiznis/pspcore/internal/policy"
	"github.com/smallbiznis/pspcore/internal/provider"
	"github.com/smallbiznis/pspcore/internal/ratelimit"
	"github.com/smallbiznis/pspcore/internal/reconciler"
	"github.com/smallbiznis/pspcore/pkg/db"
	"go.uber.org/fx"
)

var version = "dev"

func providePolicyHolder(cfg config.Config) (*policy.Holder, error) {
	return policy.NewHolder(cfg.PolicyConfigPath)
}

func main() {
	app := fx.New(
		fx.Provide(config.Load),
		logger.Module,
		metrics.Module,
		cloudmetrics.Module,
		fx.Provide(providePolicyHolder),
		clock.Module,
		ratelimit.Module,
		db.Module,
		migration.Module,
		ledger.Module,
		fundinggate.Module,
		paymentorchestrator.Module,
		liability.Module,
		reconciler.Module,
		events.Module,
		provider.Module,
		facade.Module,
	)
	app.Run()
}
