package events

import (
	"context"

	"go.uber.org/fx"

	"github.com/smallbiznis/pspcore/internal/events/service"
)

var Module = fx.Module("events.service",
	fx.Provide(
		service.NewStore,
		service.NewEmitter,
		service.NewNotifier,
		service.NewListener,
	),
	fx.Invoke(registerListenerLifecycle),
)

func registerListenerLifecycle(lc fx.Lifecycle, listener *service.Listener) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return listener.Close()
		},
	})
}
