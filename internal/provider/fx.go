package provider

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/pspcore/internal/provider/adapters/ach"
	"github.com/smallbiznis/pspcore/internal/provider/adapters/fednow"
	"github.com/smallbiznis/pspcore/internal/provider/credentials"
	providerratelimit "github.com/smallbiznis/pspcore/internal/provider/ratelimit"
)

// newRegistry assembles the Registry from every rail factory fx knows how
// to build. Adding a rail means adding its Factory here and to the
// fx.Provide list below — there is no dynamic plugin loading.
func newRegistry(achFactory *ach.Factory, fednowFactory *fednow.Factory) *Registry {
	return NewRegistry(achFactory, fednowFactory)
}

// Module wires the rail registry and its stub factories, plus the
// supporting credential codec and rail rate limiter. A production
// deployment replaces ach.NewFactory/fednow.NewFactory with adapters that
// hold real rail credentials and network clients; the registry and its
// caller (the facade) are agnostic to which.
var Module = fx.Module("provider",
	fx.Provide(
		ach.NewFactory,
		fednow.NewFactory,
		newRegistry,
		credentials.NewCodec,
		providerratelimit.NewRailLimiterFromConfig,
	),
)
