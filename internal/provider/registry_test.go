package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/pspcore/internal/provider/adapters/ach"
	"github.com/smallbiznis/pspcore/internal/provider/adapters/fednow"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
	"github.com/smallbiznis/pspcore/internal/clock"
)

func TestRegistry_ResolvesByRailCaseInsensitively(t *testing.T) {
	registry := NewRegistry(ach.NewFactory(clock.System{}), fednow.NewFactory(clock.System{}))

	assert.True(t, registry.RailExists("ACH"))
	assert.True(t, registry.RailExists(" fednow "))
	assert.False(t, registry.RailExists("wire"))

	adapter, err := registry.NewAdapter("ACH", providerdomain.AdapterConfig{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "ach", adapter.Capabilities().Rail)
}

func TestRegistry_UnknownRailReturnsErrProviderNotFound(t *testing.T) {
	registry := NewRegistry(ach.NewFactory(clock.System{}))
	_, err := registry.NewAdapter("wire", providerdomain.AdapterConfig{})
	assert.ErrorIs(t, err, providerdomain.ErrProviderNotFound)
}

func TestRegistry_SkipsNilAndBlankFactories(t *testing.T) {
	registry := NewRegistry(nil, ach.NewFactory(clock.System{}))
	assert.True(t, registry.RailExists("ach"))
	assert.Equal(t, 1, len(registry.factories))
}

func TestRegistry_NilReceiverIsSafe(t *testing.T) {
	var registry *Registry
	assert.False(t, registry.RailExists("ach"))
	_, err := registry.NewAdapter("ach", providerdomain.AdapterConfig{})
	assert.ErrorIs(t, err, providerdomain.ErrProviderNotFound)
}
