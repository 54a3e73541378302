package clock

import "go.uber.org/fx"

func provideSystem() Clock { return System{} }

var Module = fx.Module("clock",
	fx.Provide(provideSystem),
)
