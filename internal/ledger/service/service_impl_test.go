package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/pspcore/internal/clock"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
	"github.com/smallbiznis/pspcore/internal/money"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE ledger_account (
			account_id TEXT PRIMARY KEY, tenant_id TEXT, legal_entity_id TEXT,
			account_type TEXT, currency TEXT, active BOOLEAN, created_at DATETIME,
			UNIQUE(tenant_id, legal_entity_id, account_type, currency)
		)`,
		`CREATE TABLE ledger_entry (
			entry_id TEXT PRIMARY KEY, tenant_id TEXT, account_id TEXT, direction TEXT,
			amount_minor INTEGER, currency TEXT, posted_at DATETIME, source_type TEXT,
			source_id TEXT, correlation_id TEXT, idempotency_key TEXT
		)`,
		`CREATE TABLE reservation (
			reservation_id TEXT PRIMARY KEY, tenant_id TEXT, legal_entity_id TEXT,
			reserve_type TEXT, amount_minor INTEGER, currency TEXT, status TEXT,
			source_type TEXT, source_id TEXT, ttl_seconds INTEGER, created_at DATETIME, expires_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := testDB(t)
	svc := &Service{
		db:        db,
		log:       zap.NewNop(),
		clock:     clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		idemCache: newIdempotencyCache(nil),
	}
	return svc, db
}

func balancedEntries(t *testing.T, tenantID, accountA, accountB uuid.UUID, amount money.Amount) []ledgerdomain.LedgerEntry {
	t.Helper()
	return []ledgerdomain.LedgerEntry{
		{TenantID: tenantID, AccountID: accountA, Direction: ledgerdomain.Debit, Amount: amount, SourceType: "test", SourceID: uuid.New()},
		{TenantID: tenantID, AccountID: accountB, Direction: ledgerdomain.Credit, Amount: amount, SourceType: "test", SourceID: uuid.New()},
	}
}

func TestPost_RejectsUnbalancedEntries(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()
	entries := []ledgerdomain.LedgerEntry{
		{TenantID: tenantID, AccountID: uuid.New(), Direction: ledgerdomain.Debit, Amount: money.New(1000, "usd"), SourceType: "test", SourceID: uuid.New()},
		{TenantID: tenantID, AccountID: uuid.New(), Direction: ledgerdomain.Credit, Amount: money.New(900, "usd"), SourceType: "test", SourceID: uuid.New()},
	}
	_, err := svc.Post(context.Background(), tenantID, uuid.New(), "key-1", entries)
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedPosting)
}

func TestPost_RejectsCrossTenantEntries(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()
	entries := balancedEntries(t, tenantID, uuid.New(), uuid.New(), money.New(1000, "usd"))
	entries[1].TenantID = uuid.New()
	_, err := svc.Post(context.Background(), tenantID, uuid.New(), "key-1", entries)
	assert.ErrorIs(t, err, ledgerdomain.ErrCrossTenantPosting)
}

func TestPost_InsertsAndReplaysByIdempotencyKey(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()
	accountA, accountB := uuid.New(), uuid.New()
	entries := balancedEntries(t, tenantID, accountA, accountB, money.New(5000, "usd"))

	first, err := svc.Post(context.Background(), tenantID, uuid.New(), "key-1", entries)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Len(t, first.Entries, 2)

	second, err := svc.Post(context.Background(), tenantID, uuid.New(), "key-1", entries)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)
}

func TestGetOrCreateAccount_IsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID, legalEntityID := uuid.New(), uuid.New()

	first, err := svc.GetOrCreateAccount(context.Background(), tenantID, legalEntityID, ledgerdomain.AccountTypeClientNetPayPayable, "USD")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.AccountID)

	second, err := svc.GetOrCreateAccount(context.Background(), tenantID, legalEntityID, ledgerdomain.AccountTypeClientNetPayPayable, "USD")
	require.NoError(t, err)
	assert.Equal(t, first.AccountID, second.AccountID)
}

func TestCreateReservation_HoldsFunds(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID, legalEntityID := uuid.New(), uuid.New()

	res, err := svc.CreateReservation(context.Background(), tenantID, legalEntityID, "net_pay", money.New(2500, "USD"), "payroll_batch", uuid.New(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.ReservationHeld, res.Status)
	assert.Equal(t, int64(2500), res.Amount.Minor)
}
