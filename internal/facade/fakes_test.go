package facade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
	fundinggatedomain "github.com/smallbiznis/pspcore/internal/fundinggate/domain"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
	liabilitydomain "github.com/smallbiznis/pspcore/internal/liability/domain"
	"github.com/smallbiznis/pspcore/internal/money"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
	reconcilerdomain "github.com/smallbiznis/pspcore/internal/reconciler/domain"
)

// fakeFundingGate is a scripted fundinggatedomain.Service double: each test
// sets the exact result it wants the commit- and pay-gate calls to return.
type fakeFundingGate struct {
	commitResult fundinggatedomain.GateResult
	commitErr    error
	payResult    fundinggatedomain.GateResult
	payErr       error
	payCalls     int
}

func (f *fakeFundingGate) EvaluateCommitGate(ctx context.Context, req fundinggatedomain.CommitGateRequest) (fundinggatedomain.GateResult, error) {
	return f.commitResult, f.commitErr
}
func (f *fakeFundingGate) EvaluatePayGate(ctx context.Context, req fundinggatedomain.PayGateRequest) (fundinggatedomain.GateResult, error) {
	f.payCalls++
	return f.payResult, f.payErr
}

// fakeLedger tracks reservation creation/release for assertions.
type fakeLedger struct {
	reservation       ledgerdomain.Reservation
	createErr         error
	releasedID        *uuid.UUID
	releaseErr        error
}

func (f *fakeLedger) Post(ctx context.Context, tenantID, correlationID uuid.UUID, idempotencyKey string, entries []ledgerdomain.LedgerEntry) (ledgerdomain.PostResult, error) {
	return ledgerdomain.PostResult{}, nil
}
func (f *fakeLedger) GetBalance(ctx context.Context, tenantID, accountID uuid.UUID) (ledgerdomain.Balance, error) {
	return ledgerdomain.Balance{}, nil
}
func (f *fakeLedger) GetOrCreateAccount(ctx context.Context, tenantID, legalEntityID uuid.UUID, accountType ledgerdomain.AccountType, currency string) (ledgerdomain.LedgerAccount, error) {
	return ledgerdomain.LedgerAccount{}, nil
}
func (f *fakeLedger) CreateReservation(ctx context.Context, tenantID, legalEntityID uuid.UUID, reserveType string, amount money.Amount, sourceType string, sourceID uuid.UUID, ttl time.Duration) (ledgerdomain.Reservation, error) {
	if f.createErr != nil {
		return ledgerdomain.Reservation{}, f.createErr
	}
	return f.reservation, nil
}
func (f *fakeLedger) ReleaseReservation(ctx context.Context, tenantID, reservationID uuid.UUID, consumed bool) error {
	id := reservationID
	f.releasedID = &id
	return f.releaseErr
}

// fakeOrchestrator scripts instruction creation, submission, lookup, and
// status updates.
type fakeOrchestrator struct {
	createResult orchdomain.CreateResult
	createErr    error
	submitResult orchdomain.SubmissionResult
	submitErr    error
	submitCalls  int

	byRequestID map[string]orchdomain.PaymentInstruction
	lookupErr   error

	updateCalls []orchdomain.Status
	updateErr   error
}

func (o *fakeOrchestrator) CreateEmployeeNetInstruction(ctx context.Context, tenantID, legalEntityID, employeeID, payStatementID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (orchdomain.CreateResult, error) {
	return o.createResult, o.createErr
}
func (o *fakeOrchestrator) CreateTaxInstruction(ctx context.Context, tenantID, legalEntityID, taxAgencyID, taxLiabilityID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (orchdomain.CreateResult, error) {
	return o.createResult, o.createErr
}
func (o *fakeOrchestrator) CreateThirdPartyInstruction(ctx context.Context, tenantID, legalEntityID, providerID, obligationID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (orchdomain.CreateResult, error) {
	return o.createResult, o.createErr
}
func (o *fakeOrchestrator) Get(ctx context.Context, tenantID, instructionID uuid.UUID) (orchdomain.PaymentInstruction, error) {
	return orchdomain.PaymentInstruction{}, nil
}
func (o *fakeOrchestrator) FindByProviderRequestID(ctx context.Context, tenantID uuid.UUID, providerRequestID string) (orchdomain.PaymentInstruction, error) {
	if o.lookupErr != nil {
		return orchdomain.PaymentInstruction{}, o.lookupErr
	}
	inst, ok := o.byRequestID[providerRequestID]
	if !ok {
		return orchdomain.PaymentInstruction{}, orchdomain.ErrInstructionNotFound
	}
	return inst, nil
}
func (o *fakeOrchestrator) Submit(ctx context.Context, tenantID, instructionID uuid.UUID, adapter providerdomain.PaymentAdapter) (orchdomain.SubmissionResult, error) {
	o.submitCalls++
	return o.submitResult, o.submitErr
}
func (o *fakeOrchestrator) UpdateStatus(ctx context.Context, tenantID, instructionID uuid.UUID, newStatus orchdomain.Status, providerRequestID string, occurredAt time.Time) error {
	o.updateCalls = append(o.updateCalls, newStatus)
	return o.updateErr
}

// fakeReconciler scripts RunReconciliation's outcome.
type fakeReconciler struct {
	result reconcilerdomain.ReconciliationResult
	err    error
}

func (r *fakeReconciler) RunReconciliation(ctx context.Context, tenantID, bankAccountID uuid.UUID, date time.Time, adapter providerdomain.PaymentAdapter) (reconcilerdomain.ReconciliationResult, error) {
	return r.result, r.err
}

// fakeLiability records classification calls.
type fakeLiability struct {
	classifyCalls int
	recordCalls   int
}

func (l *fakeLiability) ClassifyReturn(rail, returnCode string, amount money.Amount) liabilitydomain.Classification {
	l.classifyCalls++
	return liabilitydomain.Classification{ErrorOrigin: "provider", LiabilityParty: "psp", RecoveryPath: "writeoff"}
}
func (l *fakeLiability) RecordLiabilityEvent(ctx context.Context, tenantID, instructionID uuid.UUID, rail, returnCode string, amount money.Amount, class liabilitydomain.Classification) (liabilitydomain.LiabilityEvent, error) {
	l.recordCalls++
	return liabilitydomain.LiabilityEvent{LiabilityEventID: uuid.New()}, nil
}

// fakeEmitter records every emitted payload's kind.
type fakeEmitter struct {
	kinds []eventsdomain.Kind
}

func (e *fakeEmitter) Subscribe(handler eventsdomain.Handler) {}
func (e *fakeEmitter) Emit(ctx context.Context, tenantID, correlationID uuid.UUID, causationID *ulid.ULID, payload eventsdomain.Payload) (eventsdomain.DomainEvent, error) {
	e.kinds = append(e.kinds, payload.Kind())
	return eventsdomain.DomainEvent{Kind: payload.Kind()}, nil
}

// fakeAdapterFactory registers a no-op adapter under a configurable rail
// name, so provider.Registry.NewAdapter has something to resolve.
type fakeAdapterFactory struct {
	rail string
}

func (f *fakeAdapterFactory) Rail() string { return f.rail }
func (f *fakeAdapterFactory) NewAdapter(cfg providerdomain.AdapterConfig) (providerdomain.PaymentAdapter, error) {
	return &fakeAdapter{rail: f.rail}, nil
}

type fakeAdapter struct {
	rail string
}

func (a *fakeAdapter) Submit(ctx context.Context, req providerdomain.SubmitRequest) (providerdomain.SubmitResponse, error) {
	return providerdomain.SubmitResponse{Accepted: true}, nil
}
func (a *fakeAdapter) Status(ctx context.Context, providerRequestID string) (providerdomain.StatusResponse, error) {
	return providerdomain.StatusResponse{}, nil
}
func (a *fakeAdapter) Cancel(ctx context.Context, providerRequestID string) (providerdomain.CancelResponse, error) {
	return providerdomain.CancelResponse{}, nil
}
func (a *fakeAdapter) PullSettlements(ctx context.Context, effectiveDate time.Time, bankAccountID uuid.UUID) ([]providerdomain.SettlementRecord, error) {
	return nil, nil
}
func (a *fakeAdapter) Capabilities() providerdomain.Capabilities {
	return providerdomain.Capabilities{Rail: a.rail}
}
