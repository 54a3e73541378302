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
	"github.com/smallbiznis/pspcore/internal/money"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
)

// Note: payment_instruction reads are issued with SELECT ... FOR UPDATE,
// which sqlite's grammar rejects, so any test reaching FindByID (Get, Submit,
// UpdateStatus) is exercised against postgres only. Instruction creation and
// the provider-request lookup never take that lock and are covered here.

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE payment_instruction (
			instruction_id TEXT PRIMARY KEY, tenant_id TEXT, legal_entity_id TEXT, purpose TEXT,
			direction TEXT, amount_minor INTEGER, currency TEXT, payee_type TEXT, payee_ref_id TEXT,
			detail_json BLOB, source_type TEXT, source_id TEXT, status TEXT, created_at DATETIME,
			idempotency_key TEXT,
			UNIQUE(tenant_id, idempotency_key)
		)`,
		`CREATE TABLE payment_attempt (
			attempt_id TEXT PRIMARY KEY, tenant_id TEXT, instruction_id TEXT, provider_name TEXT,
			provider_request_id TEXT, attempt_no INTEGER, status TEXT, submitted_at DATETIME,
			response_payload BLOB
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newTestService(t *testing.T) *Service {
	return &Service{
		db:    testDB(t),
		log:   zap.NewNop(),
		clock: clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestCreateEmployeeNetInstruction_IsIdempotent(t *testing.T) {
	svc := newTestService(t)
	tenantID, legalEntityID, employeeID, payStatementID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	first, err := svc.CreateEmployeeNetInstruction(context.Background(), tenantID, legalEntityID, employeeID, payStatementID,
		money.New(5000, "USD"), "payroll_batch", uuid.New(), "create-key-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := svc.CreateEmployeeNetInstruction(context.Background(), tenantID, legalEntityID, employeeID, payStatementID,
		money.New(5000, "USD"), "payroll_batch", uuid.New(), "create-key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.InstructionID, second.InstructionID)
}

func TestCreateTaxInstruction_CreatesDraft(t *testing.T) {
	svc := newTestService(t)
	tenantID, legalEntityID := uuid.New(), uuid.New()

	result, err := svc.CreateTaxInstruction(context.Background(), tenantID, legalEntityID, uuid.New(), uuid.New(),
		money.New(1200, "USD"), "payroll_batch", uuid.New(), "tax-key-1")
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	require.NotEqual(t, uuid.Nil, result.InstructionID)
}

func TestFindByProviderRequestID_ResolvesMostRecentAttempt(t *testing.T) {
	svc := newTestService(t)
	tenantID, legalEntityID := uuid.New(), uuid.New()

	created, err := svc.CreateThirdPartyInstruction(context.Background(), tenantID, legalEntityID, uuid.New(), uuid.New(),
		money.New(3000, "USD"), "payroll_batch", uuid.New(), "vendor-key-1")
	require.NoError(t, err)

	require.NoError(t, svc.db.Exec(
		`INSERT INTO payment_attempt (attempt_id, tenant_id, instruction_id, provider_name, provider_request_id, attempt_no, status, submitted_at, response_payload)
		 VALUES (?, ?, ?, 'ach', 'req-123', 1, 'submitted', ?, NULL)`,
		uuid.New(), tenantID, created.InstructionID, svc.clock.Now(),
	).Error)

	found, err := svc.FindByProviderRequestID(context.Background(), tenantID, "req-123")
	require.NoError(t, err)
	assert.Equal(t, created.InstructionID, found.InstructionID)
}

func TestFindByProviderRequestID_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.FindByProviderRequestID(context.Background(), uuid.New(), "no-such-request")
	assert.ErrorIs(t, err, orchdomain.ErrInstructionNotFound)
}

func TestLegalChain_DirectTransitions(t *testing.T) {
	chain, ok := legalChain(orchdomain.StatusDraft, orchdomain.StatusSubmitted)
	require.True(t, ok)
	assert.Equal(t, []orchdomain.Status{orchdomain.StatusSubmitted}, chain)

	chain, ok = legalChain(orchdomain.StatusAccepted, orchdomain.StatusSettled)
	require.True(t, ok)
	assert.Equal(t, []orchdomain.Status{orchdomain.StatusSettled}, chain)
}

func TestLegalChain_CoalescedSubmittedToSettled(t *testing.T) {
	chain, ok := legalChain(orchdomain.StatusSubmitted, orchdomain.StatusSettled)
	require.True(t, ok)
	assert.Equal(t, []orchdomain.Status{orchdomain.StatusAccepted, orchdomain.StatusSettled}, chain)
}

func TestLegalChain_RejectsSameStatus(t *testing.T) {
	_, ok := legalChain(orchdomain.StatusDraft, orchdomain.StatusDraft)
	assert.False(t, ok)
}

func TestLegalChain_RejectsIllegalJump(t *testing.T) {
	_, ok := legalChain(orchdomain.StatusDraft, orchdomain.StatusSettled)
	assert.False(t, ok)
}

func TestLegalChain_RejectsBackwardsMove(t *testing.T) {
	_, ok := legalChain(orchdomain.StatusSettled, orchdomain.StatusSubmitted)
	assert.False(t, ok)
}
