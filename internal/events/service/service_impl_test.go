package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/pspcore/internal/clock"
	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE domain_event (
		event_id TEXT PRIMARY KEY, tenant_id TEXT, correlation_id TEXT, causation_id TEXT,
		kind TEXT, occurred_at DATETIME, payload_json BLOB
	)`).Error)
	return db
}

func newTestStore(t *testing.T) *Store {
	return &Store{db: testDB(t), log: zap.NewNop()}
}

func TestStore_AppendAndLoadBy(t *testing.T) {
	store := newTestStore(t)
	tenantID, correlationID, payRunID := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	evt := eventsdomain.DomainEvent{
		EventID:       ulid.MustNew(ulid.Timestamp(now), nil),
		TenantID:      tenantID,
		CorrelationID: correlationID,
		Kind:          eventsdomain.KindFundingRequested,
		OccurredAt:    now,
		Payload:       eventsdomain.FundingRequested{PayRunID: payRunID, FundingModel: "postfund", RequiredAmount: 10000, Currency: "USD"},
	}
	require.NoError(t, store.Append(context.Background(), evt))

	loaded, err := store.LoadBy(context.Background(), tenantID, eventsdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, eventsdomain.KindFundingRequested, loaded[0].Kind)
	payload, ok := loaded[0].Payload.(eventsdomain.FundingRequested)
	require.True(t, ok)
	assert.Equal(t, payRunID, payload.PayRunID)
	assert.Equal(t, int64(10000), payload.RequiredAmount)
}

func TestStore_LoadByFiltersOnKind(t *testing.T) {
	store := newTestStore(t)
	tenantID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(context.Background(), eventsdomain.DomainEvent{
		EventID: ulid.MustNew(ulid.Timestamp(now), nil), TenantID: tenantID,
		Kind: eventsdomain.KindFundingRequested, OccurredAt: now,
		Payload: eventsdomain.FundingRequested{PayRunID: uuid.New(), FundingModel: "postfund", RequiredAmount: 1, Currency: "USD"},
	}))
	require.NoError(t, store.Append(context.Background(), eventsdomain.DomainEvent{
		EventID: ulid.MustNew(ulid.Timestamp(now.Add(time.Second)), nil), TenantID: tenantID,
		Kind: eventsdomain.KindFundingApproved, OccurredAt: now.Add(time.Second),
		Payload: eventsdomain.FundingApproved{AvailableAmount: 1, Currency: "USD"},
	}))

	loaded, err := store.LoadBy(context.Background(), tenantID, eventsdomain.Filter{Kind: eventsdomain.KindFundingApproved})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, eventsdomain.KindFundingApproved, loaded[0].Kind)
}

func TestStore_ReplayReturnsEventsFromIDOnward(t *testing.T) {
	store := newTestStore(t)
	tenantID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	id1 := ulid.MustNew(ulid.Timestamp(now), nil)
	id2 := ulid.MustNew(ulid.Timestamp(now.Add(time.Minute)), nil)
	id3 := ulid.MustNew(ulid.Timestamp(now.Add(2*time.Minute)), nil)

	for _, e := range []eventsdomain.DomainEvent{
		{EventID: id1, TenantID: tenantID, Kind: eventsdomain.KindPaymentSubmitted, OccurredAt: now, Payload: eventsdomain.PaymentSubmitted{InstructionID: uuid.New()}},
		{EventID: id2, TenantID: tenantID, Kind: eventsdomain.KindPaymentSettled, OccurredAt: now.Add(time.Minute), Payload: eventsdomain.PaymentSettled{InstructionID: uuid.New()}},
		{EventID: id3, TenantID: tenantID, Kind: eventsdomain.KindPaymentReturned, OccurredAt: now.Add(2 * time.Minute), Payload: eventsdomain.PaymentReturned{InstructionID: uuid.New(), ReturnCode: "R01"}},
	} {
		require.NoError(t, store.Append(context.Background(), e))
	}

	replayed, err := store.Replay(context.Background(), tenantID, id2)
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, eventsdomain.KindPaymentSettled, replayed[0].Kind)
	assert.Equal(t, eventsdomain.KindPaymentReturned, replayed[1].Kind)
}

// fakeStore is an in-memory eventsdomain.Store double for Emitter tests,
// avoiding any dependency on database wiring.
type fakeStore struct {
	events    []eventsdomain.DomainEvent
	appendErr error
}

func (s *fakeStore) Append(ctx context.Context, event eventsdomain.DomainEvent) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.events = append(s.events, event)
	return nil
}
func (s *fakeStore) LoadBy(ctx context.Context, tenantID uuid.UUID, filter eventsdomain.Filter) ([]eventsdomain.DomainEvent, error) {
	return s.events, nil
}
func (s *fakeStore) Replay(ctx context.Context, tenantID uuid.UUID, fromEventID ulid.ULID) ([]eventsdomain.DomainEvent, error) {
	return s.events, nil
}

func TestEmitter_PersistsThenFansOutToHandlers(t *testing.T) {
	store := &fakeStore{}
	emitter := &Emitter{store: store, clock: clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), log: zap.NewNop()}

	var calls []eventsdomain.Kind
	emitter.Subscribe(func(ctx context.Context, event eventsdomain.DomainEvent) error {
		calls = append(calls, event.Kind)
		return nil
	})

	tenantID, correlationID := uuid.New(), uuid.New()
	_, err := emitter.Emit(context.Background(), tenantID, correlationID, nil, eventsdomain.PaymentSettled{InstructionID: uuid.New()})
	require.NoError(t, err)

	assert.Len(t, store.events, 1)
	assert.Equal(t, []eventsdomain.Kind{eventsdomain.KindPaymentSettled}, calls)
}

func TestEmitter_HandlerErrorDoesNotStopOthersOrFailEmit(t *testing.T) {
	store := &fakeStore{}
	emitter := &Emitter{store: store, clock: clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), log: zap.NewNop()}

	var secondRan bool
	emitter.Subscribe(func(ctx context.Context, event eventsdomain.DomainEvent) error {
		return errors.New("boom")
	})
	emitter.Subscribe(func(ctx context.Context, event eventsdomain.DomainEvent) error {
		secondRan = true
		return nil
	})

	_, err := emitter.Emit(context.Background(), uuid.New(), uuid.New(), nil, eventsdomain.PaymentFailed{InstructionID: uuid.New(), Message: "x"})
	require.NoError(t, err)
	assert.True(t, secondRan)
}

func TestEmitter_ReturnsStoreAppendError(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("db down")}
	emitter := &Emitter{store: store, clock: clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), log: zap.NewNop()}

	_, err := emitter.Emit(context.Background(), uuid.New(), uuid.New(), nil, eventsdomain.PaymentSettled{InstructionID: uuid.New()})
	assert.Error(t, err)
}
