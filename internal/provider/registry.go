// Package provider is the rail adapter registry: one AdapterFactory per
// rail, resolved by name at Submit/PullSettlements time.
package provider

import (
	"strings"

	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
)

// Registry holds one AdapterFactory per rail, keyed case-insensitively.
type Registry struct {
	factories map[string]providerdomain.AdapterFactory
}

// NewRegistry builds a Registry from factories, skipping any nil entry or
// one whose Rail() is blank.
func NewRegistry(factories ...providerdomain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]providerdomain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		rail := strings.ToLower(strings.TrimSpace(factory.Rail()))
		if rail == "" {
			continue
		}
		registry.factories[rail] = factory
	}
	return registry
}

// RailExists reports whether rail has a registered factory.
func (r *Registry) RailExists(rail string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(rail))]
	return ok
}

// NewAdapter resolves rail's factory and builds an adapter for cfg.
func (r *Registry) NewAdapter(rail string, cfg providerdomain.AdapterConfig) (providerdomain.PaymentAdapter, error) {
	if r == nil {
		return nil, providerdomain.ErrProviderNotFound
	}
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(rail))]
	if !ok {
		return nil, providerdomain.ErrProviderNotFound
	}
	return factory.NewAdapter(cfg)
}
