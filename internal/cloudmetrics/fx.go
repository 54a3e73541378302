package cloudmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/pspcore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushInterval = 30 * time.Minute

// Module wires the fleet gauge registry and, when a pushgateway URL is
// configured, a background loop that refreshes and pushes it.
var Module = fx.Module("cloudmetrics",
	fx.Provide(
		func() *prometheus.Registry { return prometheus.NewRegistry() },
		provideConfig,
		NewPusher,
		NewGauges,
	),
	fx.Invoke(registerPushLoop),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Endpoint:    cfg.CloudMetricsPushgatewayURL,
		Job:         cfg.AppName,
		Environment: cfg.Environment,
	}
}

func registerPushLoop(lc fx.Lifecycle, pusher Pusher, gauges *Gauges, registry *prometheus.Registry, db *gorm.DB, log *zap.Logger) {
	if pusher == nil {
		return
	}
	log = log.Named("cloudmetrics")

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting fleet metrics push loop", zap.Duration("interval", pushInterval))
			go runPushLoop(ctx, pusher, gauges, registry, db, log)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func runPushLoop(ctx context.Context, pusher Pusher, gauges *Gauges, registry *prometheus.Registry, db *gorm.DB, log *zap.Logger) {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	push := func() {
		gauges.RefreshSystem()
		gauges.RefreshFleet(ctx, db)
		if err := pusher.Push(ctx, registry); err != nil {
			log.Warn("fleet metrics push failed", zap.Error(err))
		}
	}

	push()
	for {
		select {
		case <-ticker.C:
			push()
		case <-ctx.Done():
			log.Info("stopping fleet metrics push loop")
			return
		}
	}
}
