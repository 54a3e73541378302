package fednow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/pspcore/internal/clock"
	"github.com/smallbiznis/pspcore/internal/money"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
)

func TestAdapter_SubmitSettlesImmediately(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	a, err := NewFactory(fake).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)
	adapter := a.(*Adapter)

	resp, err := adapter.Submit(context.Background(), providerdomain.SubmitRequest{Amount: money.New(2500, "USD")})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)

	status, err := adapter.Status(context.Background(), resp.ProviderRequestID)
	require.NoError(t, err)
	assert.Equal(t, providerdomain.SubmissionSettled, status.Status)

	records, err := adapter.PullSettlements(context.Background(), fake.Now(), uuid.New())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resp.ProviderRequestID, records[0].ProviderRequestID)
	assert.Equal(t, "success", records[0].Status)
}

func TestAdapter_CancelAlwaysRejected(t *testing.T) {
	adapter, err := NewFactory(clock.System{}).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)

	cancel, err := adapter.Cancel(context.Background(), "any-request-id")
	require.NoError(t, err)
	assert.False(t, cancel.Accepted)
}

func TestAdapter_Capabilities(t *testing.T) {
	adapter, err := NewFactory(clock.System{}).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)
	caps := adapter.Capabilities()
	assert.Equal(t, "fednow", caps.Rail)
	assert.False(t, caps.SupportsCancel)
	assert.True(t, caps.SupportsRealtime)
}
