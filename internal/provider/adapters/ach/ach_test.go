package ach

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

func TestAdapter_SubmitAcceptsAndStatusReplays(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	factory := NewFactory(fake)
	adapter, err := factory.NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)

	resp, err := adapter.Submit(context.Background(), providerdomain.SubmitRequest{
		InstructionID: uuid.New(), Amount: money.New(1000, "USD"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	require.NotEmpty(t, resp.ProviderRequestID)

	status, err := adapter.Status(context.Background(), resp.ProviderRequestID)
	require.NoError(t, err)
	assert.Equal(t, providerdomain.SubmissionAccepted, status.Status)
}

func TestAdapter_StatusUnknownForUnseenRequest(t *testing.T) {
	adapter, err := NewFactory(clock.System{}).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)

	status, err := adapter.Status(context.Background(), "never-submitted")
	require.NoError(t, err)
	assert.Equal(t, providerdomain.SubmissionUnknown, status.Status)
}

func TestAdapter_CancelBeforeSettlementSucceeds(t *testing.T) {
	adapter, err := NewFactory(clock.System{}).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)

	resp, err := adapter.Submit(context.Background(), providerdomain.SubmitRequest{Amount: money.New(500, "USD")})
	require.NoError(t, err)

	cancel, err := adapter.Cancel(context.Background(), resp.ProviderRequestID)
	require.NoError(t, err)
	assert.True(t, cancel.Accepted)

	status, err := adapter.Status(context.Background(), resp.ProviderRequestID)
	require.NoError(t, err)
	assert.Equal(t, providerdomain.SubmissionUnknown, status.Status)
}

func TestAdapter_CancelUnknownRequestFails(t *testing.T) {
	adapter, err := NewFactory(clock.System{}).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)

	cancel, err := adapter.Cancel(context.Background(), "never-submitted")
	require.NoError(t, err)
	assert.False(t, cancel.Accepted)
}

func TestAdapter_PullSettlementsFiltersByEffectiveDate(t *testing.T) {
	a, err := NewFactory(clock.System{}).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)
	adapter := a.(*Adapter)
	bankAccountID := uuid.New()
	day1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	adapter.SeedSettlement(providerdomain.SettlementRecord{ExternalTraceID: "t1", EffectiveDate: day1})
	adapter.SeedSettlement(providerdomain.SettlementRecord{ExternalTraceID: "t2", EffectiveDate: day2})

	records, err := adapter.PullSettlements(context.Background(), day1, bankAccountID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "t1", records[0].ExternalTraceID)
}

func TestAdapter_Capabilities(t *testing.T) {
	adapter, err := NewFactory(clock.System{}).NewAdapter(providerdomain.AdapterConfig{})
	require.NoError(t, err)
	caps := adapter.Capabilities()
	assert.Equal(t, "ach", caps.Rail)
	assert.True(t, caps.SupportsCancel)
	assert.False(t, caps.SupportsRealtime)
}
