package facade

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
	fundinggatedomain "github.com/smallbiznis/pspcore/internal/fundinggate/domain"
	"github.com/smallbiznis/pspcore/internal/money"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
	"github.com/smallbiznis/pspcore/internal/provider"
	reconcilerdomain "github.com/smallbiznis/pspcore/internal/reconciler/domain"
)

func newTestFacade() (*Facade, *fakeFundingGate, *fakeLedger, *fakeOrchestrator, *fakeReconciler, *fakeLiability, *fakeEmitter) {
	gate := &fakeFundingGate{}
	ledger := &fakeLedger{}
	orch := &fakeOrchestrator{byRequestID: map[string]orchdomain.PaymentInstruction{}}
	reconciler := &fakeReconciler{}
	liability := &fakeLiability{}
	emitter := &fakeEmitter{}
	registry := provider.NewRegistry(&fakeAdapterFactory{rail: "ach"})

	f := &Facade{
		log:          zap.NewNop(),
		cfg:          Config{CommitGateStrict: true, ReservationTTL: time.Hour, DefaultRail: "ach", EmitEvents: true},
		fundingGate:  gate,
		ledger:       ledger,
		orchestrator: orch,
		reconciler:   reconciler,
		liability:    liability,
		emitter:      emitter,
		providers:    registry,
	}
	return f, gate, ledger, orch, reconciler, liability, emitter
}

func testBatch() PayrollBatch {
	return PayrollBatch{
		BatchID:        uuid.New(),
		TenantID:       uuid.New(),
		LegalEntityID:  uuid.New(),
		PayRunID:       uuid.New(),
		Items:          []PayrollItem{{PayeeRefID: uuid.New(), Amount: money.New(10000, "USD"), Purpose: orchdomain.PurposeEmployeeNet}},
		IdempotencyKey: "batch-1",
	}
}

func TestCommitPayrollBatch_ApprovedCreatesReservation(t *testing.T) {
	f, gate, _, _, _, _, emitter := newTestFacade()
	gate.commitResult = fundinggatedomain.GateResult{Passed: true, AvailableAmount: money.New(20000, "USD")}

	result, err := f.CommitPayrollBatch(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, CommitApproved, result.Status)
	require.NotNil(t, result.ReservationID)
	assert.Equal(t, 1, result.ApprovedCount)
	assert.Contains(t, emitter.kinds, eventsdomain.KindFundingRequested)
	assert.Contains(t, emitter.kinds, eventsdomain.KindFundingApproved)
}

func TestCommitPayrollBatch_BlockedOnInsufficientFunds(t *testing.T) {
	f, gate, _, _, _, _, emitter := newTestFacade()
	gate.commitResult = fundinggatedomain.GateResult{
		Passed:    false,
		Shortfall: money.New(5000, "USD"),
		Reasons:   []fundinggatedomain.Reason{{Code: "insufficient_funds", Message: "not enough available balance"}},
	}

	result, err := f.CommitPayrollBatch(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, CommitBlockedFunds, result.Status)
	assert.Equal(t, 1, result.BlockedCount)
	assert.Contains(t, emitter.kinds, eventsdomain.KindFundingInsufficientFunds)
}

func TestCommitPayrollBatch_BlockedOnPolicy(t *testing.T) {
	f, gate, _, _, _, _, emitter := newTestFacade()
	gate.commitResult = fundinggatedomain.GateResult{
		Passed:  false,
		Reasons: []fundinggatedomain.Reason{{Code: "unrecognized_funding_model", Message: "funding model not recognized"}},
	}

	result, err := f.CommitPayrollBatch(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, CommitBlockedPolicy, result.Status)
	assert.Contains(t, emitter.kinds, eventsdomain.KindFundingBlocked)
}

func TestExecutePayments_UnknownRailFailsWithoutCallingGate(t *testing.T) {
	f, gate, _, orch, _, _, _ := newTestFacade()
	batch := testBatch()

	result, err := f.ExecutePayments(context.Background(), batch.TenantID, batch.LegalEntityID, batch.BatchID, batch.Items, nil, "wire")
	require.NoError(t, err)
	assert.Equal(t, ExecuteFailed, result.Status)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 0, orch.submitCalls)
	assert.Equal(t, 0, gate.payCalls)
}

func TestExecutePayments_BlockedByPayGate(t *testing.T) {
	f, gate, _, orch, _, _, _ := newTestFacade()
	gate.payResult = fundinggatedomain.GateResult{
		Passed:  false,
		Reasons: []fundinggatedomain.Reason{{Code: "no_commit_gate_approval", Message: "no approved commit gate evaluation"}},
	}
	batch := testBatch()

	result, err := f.ExecutePayments(context.Background(), batch.TenantID, batch.LegalEntityID, batch.BatchID, batch.Items, nil, "")
	require.NoError(t, err)
	assert.Equal(t, ExecuteBlocked, result.Status)
	assert.Equal(t, 0, orch.submitCalls)
}

func TestExecutePayments_SuccessReleasesReservation(t *testing.T) {
	f, gate, ledger, orch, _, _, emitter := newTestFacade()
	gate.payResult = fundinggatedomain.GateResult{Passed: true}
	orch.createResult = orchdomain.CreateResult{InstructionID: uuid.New()}
	orch.submitResult = orchdomain.SubmissionResult{Accepted: true, ProviderRequestID: "req-1"}
	batch := testBatch()
	reservationID := uuid.New()

	result, err := f.ExecutePayments(context.Background(), batch.TenantID, batch.LegalEntityID, batch.BatchID, batch.Items, &reservationID, "")
	require.NoError(t, err)
	assert.Equal(t, ExecuteSuccess, result.Status)
	assert.Equal(t, 1, result.SubmittedCount)
	require.NotNil(t, ledger.releasedID)
	assert.Equal(t, reservationID, *ledger.releasedID)
	assert.Contains(t, emitter.kinds, eventsdomain.KindPaymentSubmitted)
}

func TestExecutePayments_AllItemsRejectedKeepsReservationHeld(t *testing.T) {
	f, gate, ledger, orch, _, _, _ := newTestFacade()
	gate.payResult = fundinggatedomain.GateResult{Passed: true}
	orch.createResult = orchdomain.CreateResult{InstructionID: uuid.New()}
	orch.submitResult = orchdomain.SubmissionResult{Accepted: false, Message: "rail rejected"}
	batch := testBatch()
	batch.Items = append(batch.Items, PayrollItem{PayeeRefID: uuid.New(), Amount: money.New(500, "USD"), Purpose: orchdomain.PurposeEmployeeNet})
	reservationID := uuid.New()

	result, err := f.ExecutePayments(context.Background(), batch.TenantID, batch.LegalEntityID, batch.BatchID, batch.Items, &reservationID, "")
	require.NoError(t, err)
	assert.Equal(t, ExecuteFailed, result.Status)
	assert.Equal(t, 2, result.FailedCount)
	assert.Nil(t, ledger.releasedID)
}

func TestIngestSettlementFeed_UnknownRail(t *testing.T) {
	f, _, _, _, _, _, _ := newTestFacade()
	result, err := f.IngestSettlementFeed(context.Background(), uuid.New(), uuid.New(), "wire", time.Now())
	require.NoError(t, err)
	assert.Equal(t, IngestFailed, result.Status)
}

func TestIngestSettlementFeed_Success(t *testing.T) {
	f, _, _, _, reconciler, _, emitter := newTestFacade()
	reconciler.result = reconcilerdomain.ReconciliationResult{Processed: 3, Matched: 3, Created: 3}

	result, err := f.IngestSettlementFeed(context.Background(), uuid.New(), uuid.New(), "ach", time.Now())
	require.NoError(t, err)
	assert.Equal(t, IngestSuccess, result.Status)
	assert.Equal(t, 3, result.RecordsProcessed)
	assert.Contains(t, emitter.kinds, eventsdomain.KindReconciliationCompleted)
}

func TestIngestSettlementFeed_PartialWhenSomeFail(t *testing.T) {
	f, _, _, _, reconciler, _, _ := newTestFacade()
	reconciler.result = reconcilerdomain.ReconciliationResult{Processed: 4, Matched: 2, Failed: 1}

	result, err := f.IngestSettlementFeed(context.Background(), uuid.New(), uuid.New(), "ach", time.Now())
	require.NoError(t, err)
	assert.Equal(t, IngestPartial, result.Status)
}

func TestHandleProviderCallback_InvalidMissingProviderRequestID(t *testing.T) {
	f, _, _, _, _, _, _ := newTestFacade()
	result, err := f.HandleProviderCallback(context.Background(), uuid.New(), ProviderCallback{})
	require.NoError(t, err)
	assert.Equal(t, CallbackInvalid, result.Status)
}

func TestHandleProviderCallback_UnknownInstruction(t *testing.T) {
	f, _, _, _, _, _, _ := newTestFacade()
	result, err := f.HandleProviderCallback(context.Background(), uuid.New(), ProviderCallback{ProviderRequestID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, CallbackUnknown, result.Status)
}

func TestHandleProviderCallback_DuplicateWhenStatusUnchanged(t *testing.T) {
	f, _, _, orch, _, _, _ := newTestFacade()
	instructionID := uuid.New()
	orch.byRequestID["req-1"] = orchdomain.PaymentInstruction{InstructionID: instructionID, Status: orchdomain.StatusSettled}

	result, err := f.HandleProviderCallback(context.Background(), uuid.New(), ProviderCallback{ProviderRequestID: "req-1", Status: "settled"})
	require.NoError(t, err)
	assert.Equal(t, CallbackDuplicate, result.Status)
	assert.Empty(t, orch.updateCalls)
}

func TestHandleProviderCallback_SettledUpdatesStatusAndEmits(t *testing.T) {
	f, _, _, orch, _, _, emitter := newTestFacade()
	instructionID := uuid.New()
	orch.byRequestID["req-1"] = orchdomain.PaymentInstruction{InstructionID: instructionID, Status: orchdomain.StatusSubmitted, Amount: money.New(1000, "USD")}

	result, err := f.HandleProviderCallback(context.Background(), uuid.New(), ProviderCallback{ProviderRequestID: "req-1", Status: "settled"})
	require.NoError(t, err)
	assert.Equal(t, CallbackProcessed, result.Status)
	require.Len(t, orch.updateCalls, 1)
	assert.Equal(t, orchdomain.StatusSettled, orch.updateCalls[0])
	assert.Contains(t, emitter.kinds, eventsdomain.KindPaymentSettled)
}

func TestHandleProviderCallback_ReturnedClassifiesLiability(t *testing.T) {
	f, _, _, orch, _, liability, emitter := newTestFacade()
	instructionID := uuid.New()
	orch.byRequestID["req-1"] = orchdomain.PaymentInstruction{InstructionID: instructionID, Status: orchdomain.StatusSubmitted, Amount: money.New(1000, "USD")}

	result, err := f.HandleProviderCallback(context.Background(), uuid.New(), ProviderCallback{
		ProviderRequestID: "req-1", Status: "returned", Rail: "ach", ReturnCode: "R01",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackProcessed, result.Status)
	assert.Equal(t, 1, liability.classifyCalls)
	assert.Equal(t, 1, liability.recordCalls)
	assert.Contains(t, emitter.kinds, eventsdomain.KindPaymentReturned)
	assert.Contains(t, emitter.kinds, eventsdomain.KindLiabilityClassified)
}
