package facade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
	fundinggatedomain "github.com/smallbiznis/pspcore/internal/fundinggate/domain"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
	liabilitydomain "github.com/smallbiznis/pspcore/internal/liability/domain"
	"github.com/smallbiznis/pspcore/internal/money"
	obsmetrics "github.com/smallbiznis/pspcore/internal/observability/metrics"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
	"github.com/smallbiznis/pspcore/internal/provider"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
	reconcilerdomain "github.com/smallbiznis/pspcore/internal/reconciler/domain"
)

// Config carries the facade's gate behavior knobs (§2).
type Config struct {
	CommitGateStrict    bool
	ReservationTTL      time.Duration
	DefaultFundingModel fundinggatedomain.FundingModel
	DefaultRail         string
	EmitEvents          bool
}

// Params are the facade's fx-injected dependencies.
type Params struct {
	fx.In

	Log          *zap.Logger
	Config       Config
	FundingGate  fundinggatedomain.Service
	Ledger       ledgerdomain.Service
	Orchestrator orchdomain.Service
	Reconciler   reconcilerdomain.Service
	Liability    liabilitydomain.Service
	Emitter      eventsdomain.Emitter
	Providers    *provider.Registry
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

// Facade is the ONLY blessed entry point into PSP core operations. It
// enforces gate-then-reserve-then-submit-then-reconcile ordering by
// construction — nothing outside this package calls the gate, ledger,
// orchestrator, reconciler, or liability services directly.
type Facade struct {
	log          *zap.Logger
	cfg          Config
	fundingGate  fundinggatedomain.Service
	ledger       ledgerdomain.Service
	orchestrator orchdomain.Service
	reconciler   reconcilerdomain.Service
	liability    liabilitydomain.Service
	emitter      eventsdomain.Emitter
	providers    *provider.Registry
	obsMetrics   *obsmetrics.Metrics
}

func New(p Params) *Facade {
	return &Facade{
		log:          p.Log.Named("facade"),
		cfg:          p.Config,
		fundingGate:  p.FundingGate,
		ledger:       p.Ledger,
		orchestrator: p.Orchestrator,
		reconciler:   p.Reconciler,
		liability:    p.Liability,
		emitter:      p.Emitter,
		providers:    p.Providers,
		obsMetrics:   p.ObsMetrics,
	}
}

func (f *Facade) emit(ctx context.Context, tenantID, correlationID uuid.UUID, payload eventsdomain.Payload) {
	if !f.cfg.EmitEvents {
		return
	}
	if _, err := f.emitter.Emit(ctx, tenantID, correlationID, nil, payload); err != nil {
		f.log.Warn("emit failed", zap.String("kind", string(payload.Kind())), zap.Error(err))
	}
}

func sumAmount(items []PayrollItem) money.Amount {
	if len(items) == 0 {
		return money.Amount{}
	}
	total := money.Amount{Currency: items[0].Amount.Currency}
	for _, item := range items {
		total.Minor += item.Amount.Minor
	}
	return total
}

// CommitPayrollBatch runs the commit gate and, if it passes, reserves funds
// for batch. The batch is not yet paid — this only holds the money (§4.7
// step 1).
func (f *Facade) CommitPayrollBatch(ctx context.Context, batch PayrollBatch) (CommitResult, error) {
	correlationID := uuid.New()
	total := sumAmount(batch.Items)

	f.emit(ctx, batch.TenantID, correlationID, eventsdomain.FundingRequested{
		PayRunID:       batch.PayRunID,
		FundingModel:   string(f.cfg.DefaultFundingModel),
		RequiredAmount: total.Minor,
		Currency:       total.Currency,
	})

	gateResult, err := f.fundingGate.EvaluateCommitGate(ctx, fundinggatedomain.CommitGateRequest{
		TenantID:       batch.TenantID,
		LegalEntityID:  batch.LegalEntityID,
		PayRunID:       batch.PayRunID,
		PayRunState:    fundinggatedomain.PayRunReadyForCommit,
		FundingModel:   f.cfg.DefaultFundingModel,
		RequiredAmount: total,
		Strict:         f.cfg.CommitGateStrict,
		IdempotencyKey: "commit_gate:" + batch.IdempotencyKey,
	})
	if err != nil {
		return CommitResult{}, err
	}

	if !gateResult.Passed {
		reason := reasonSummary(gateResult.Reasons)
		status := CommitBlockedPolicy
		if reasonsIndicateInsufficientFunds(gateResult.Reasons) {
			status = CommitBlockedFunds
			f.emit(ctx, batch.TenantID, correlationID, eventsdomain.FundingInsufficientFunds{
				PayRunID:  batch.PayRunID,
				Shortfall: gateResult.Shortfall.Minor,
				Currency:  gateResult.Shortfall.Currency,
			})
		} else {
			f.emit(ctx, batch.TenantID, correlationID, eventsdomain.FundingBlocked{
				PayRunID: batch.PayRunID,
				Reasons:  []string{reason},
			})
		}

		return CommitResult{
			Status:        status,
			BatchID:       batch.BatchID,
			TotalAmount:   total,
			BlockedCount:  len(batch.Items),
			BlockReason:   reason,
			CorrelationID: correlationID,
		}, nil
	}

	reservation, err := f.ledger.CreateReservation(ctx, batch.TenantID, batch.LegalEntityID, "net_pay", total, "payroll_batch", batch.BatchID, f.cfg.ReservationTTL)
	if err != nil {
		return CommitResult{}, err
	}

	f.emit(ctx, batch.TenantID, correlationID, eventsdomain.FundingApproved{
		PayRunID:        batch.PayRunID,
		AvailableAmount: gateResult.AvailableAmount.Minor,
		Currency:        gateResult.AvailableAmount.Currency,
	})

	reservationID := reservation.ReservationID
	return CommitResult{
		Status:        CommitApproved,
		BatchID:       batch.BatchID,
		ReservationID: &reservationID,
		TotalAmount:   total,
		ApprovedCount: len(batch.Items),
		CorrelationID: correlationID,
	}, nil
}

// createInstruction routes a PayrollItem to the orchestrator's
// purpose-specific creation method (§4.3).
func (f *Facade) createInstruction(ctx context.Context, tenantID, legalEntityID, batchID uuid.UUID, item PayrollItem, idempotencyKey string) (orchdomain.CreateResult, error) {
	switch item.Purpose {
	case orchdomain.PurposeTaxPayment:
		return f.orchestrator.CreateTaxInstruction(ctx, tenantID, legalEntityID, item.PayeeRefID, item.SourceStatementOrObligationID, item.Amount, "payroll_batch", batchID, idempotencyKey)
	case orchdomain.PurposeVendorPayment:
		return f.orchestrator.CreateThirdPartyInstruction(ctx, tenantID, legalEntityID, item.PayeeRefID, item.SourceStatementOrObligationID, item.Amount, "payroll_batch", batchID, idempotencyKey)
	default:
		return f.orchestrator.CreateEmployeeNetInstruction(ctx, tenantID, legalEntityID, item.PayeeRefID, item.SourceStatementOrObligationID, item.Amount, "payroll_batch", batchID, idempotencyKey)
	}
}

// ExecutePayments evaluates the pay gate — which can never be bypassed —
// then creates and submits one instruction per item, consuming reservation
// if every item was accepted (§4.7 step 2).
func (f *Facade) ExecutePayments(ctx context.Context, tenantID, legalEntityID, batchID uuid.UUID, items []PayrollItem, reservationID *uuid.UUID, rail string) (ExecuteResult, error) {
	correlationID := uuid.New()
	if rail == "" {
		rail = f.cfg.DefaultRail
	}

	if !f.providers.RailExists(rail) {
		return ExecuteResult{
			Status:        ExecuteFailed,
			BatchID:       batchID,
			FailedCount:   len(items),
			Failures:      []ExecuteFailure{{Error: "no adapter registered for rail: " + rail}},
			CorrelationID: correlationID,
		}, nil
	}

	adapter, err := f.providers.NewAdapter(rail, providerdomain.AdapterConfig{TenantID: tenantID.String()})
	if err != nil {
		return ExecuteResult{}, err
	}

	payResult, err := f.fundingGate.EvaluatePayGate(ctx, fundinggatedomain.PayGateRequest{
		TenantID:       tenantID,
		LegalEntityID:  legalEntityID,
		PayRunID:       batchID,
		IdempotencyKey: "pay_gate:" + batchID.String(),
	})
	if err != nil {
		return ExecuteResult{}, err
	}
	if !payResult.Passed {
		return ExecuteResult{
			Status:        ExecuteBlocked,
			BatchID:       batchID,
			FailedCount:   len(items),
			Failures:      []ExecuteFailure{{Error: reasonSummary(payResult.Reasons)}},
			CorrelationID: correlationID,
		}, nil
	}

	var submitted, failed int
	var failures []ExecuteFailure

	for _, item := range items {
		idempotencyKey := batchID.String() + ":" + item.PayeeRefID.String() + ":" + string(item.Purpose)

		created, err := f.createInstruction(ctx, tenantID, legalEntityID, batchID, item, idempotencyKey)
		if err != nil {
			failed++
			failures = append(failures, ExecuteFailure{PayeeRefID: item.PayeeRefID, Amount: item.Amount, Error: err.Error()})
			continue
		}

		f.emit(ctx, tenantID, correlationID, eventsdomain.PaymentInstructionCreated{
			InstructionID: created.InstructionID,
			Purpose:       string(item.Purpose),
			AmountMinor:   item.Amount.Minor,
			Currency:      item.Amount.Currency,
		})

		submitResult, err := f.orchestrator.Submit(ctx, tenantID, created.InstructionID, adapter)
		if err != nil {
			failed++
			failures = append(failures, ExecuteFailure{PayeeRefID: item.PayeeRefID, Amount: item.Amount, Error: err.Error()})
			continue
		}

		if submitResult.Accepted {
			submitted++
			f.emit(ctx, tenantID, correlationID, eventsdomain.PaymentSubmitted{
				InstructionID:     created.InstructionID,
				ProviderRequestID: submitResult.ProviderRequestID,
			})
		} else {
			failed++
			failures = append(failures, ExecuteFailure{PayeeRefID: item.PayeeRefID, Amount: item.Amount, Error: submitResult.Message})
			f.emit(ctx, tenantID, correlationID, eventsdomain.PaymentFailed{
				InstructionID: created.InstructionID,
				Message:       submitResult.Message,
			})
		}
	}

	if reservationID != nil && failed == 0 {
		if err := f.ledger.ReleaseReservation(ctx, tenantID, *reservationID, true); err != nil {
			f.log.Warn("release reservation failed", zap.Error(err))
		}
	}

	status := ExecuteSuccess
	switch {
	case failed == 0:
		status = ExecuteSuccess
	case submitted == 0:
		status = ExecuteFailed
	default:
		status = ExecutePartial
	}

	return ExecuteResult{
		Status:         status,
		BatchID:        batchID,
		SubmittedCount: submitted,
		FailedCount:    failed,
		Failures:       failures,
		CorrelationID:  correlationID,
	}, nil
}

// IngestSettlementFeed pulls the provider's settlement feed for date and
// runs it through the reconciler (§4.7 step 3, §4.4).
func (f *Facade) IngestSettlementFeed(ctx context.Context, tenantID, bankAccountID uuid.UUID, rail string, date time.Time) (IngestResult, error) {
	correlationID := uuid.New()

	if !f.providers.RailExists(rail) {
		return IngestResult{Status: IngestFailed, CorrelationID: correlationID}, nil
	}
	adapter, err := f.providers.NewAdapter(rail, providerdomain.AdapterConfig{TenantID: tenantID.String()})
	if err != nil {
		return IngestResult{}, err
	}

	f.emit(ctx, tenantID, correlationID, eventsdomain.ReconciliationStarted{
		BankAccountID: bankAccountID,
		Date:          date,
	})

	result, err := f.reconciler.RunReconciliation(ctx, tenantID, bankAccountID, date, adapter)
	if err != nil {
		return IngestResult{}, err
	}

	f.emit(ctx, tenantID, correlationID, eventsdomain.ReconciliationCompleted{
		Processed: result.Processed,
		Matched:   result.Matched,
		Failed:    result.Failed,
	})

	status := IngestSuccess
	switch {
	case result.Failed == 0:
		status = IngestSuccess
	case result.Processed > result.Failed:
		status = IngestPartial
	default:
		status = IngestFailed
	}

	return IngestResult{
		Status:           status,
		RecordsProcessed: result.Processed,
		RecordsMatched:   result.Matched,
		RecordsCreated:   result.Created,
		RecordsFailed:    result.Failed,
		CorrelationID:    correlationID,
	}, nil
}

// HandleProviderCallback updates a payment instruction's status from an
// asynchronous provider callback, idempotently, classifying liability on a
// return (§4.7 step 4).
func (f *Facade) HandleProviderCallback(ctx context.Context, tenantID uuid.UUID, cb ProviderCallback) (CallbackResult, error) {
	correlationID := uuid.New()

	if cb.ProviderRequestID == "" {
		return CallbackResult{Status: CallbackInvalid, CorrelationID: correlationID}, nil
	}

	instruction, err := f.orchestrator.FindByProviderRequestID(ctx, tenantID, cb.ProviderRequestID)
	if err != nil {
		if err == orchdomain.ErrInstructionNotFound {
			return CallbackResult{Status: CallbackUnknown, CorrelationID: correlationID}, nil
		}
		return CallbackResult{}, err
	}

	previousStatus := string(instruction.Status)
	newStatus := orchdomain.Status(cb.Status)
	if string(newStatus) == previousStatus {
		return CallbackResult{
			Status:         CallbackDuplicate,
			InstructionID:  &instruction.InstructionID,
			PreviousStatus: previousStatus,
			NewStatus:      string(newStatus),
			CorrelationID:  correlationID,
		}, nil
	}

	occurredAt := cb.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	switch newStatus {
	case orchdomain.StatusReturned:
		amount := cb.Amount
		if amount.Minor == 0 {
			amount = instruction.Amount
		}
		classification := f.liability.ClassifyReturn(cb.Rail, cb.ReturnCode, amount)
		if _, err := f.liability.RecordLiabilityEvent(ctx, tenantID, instruction.InstructionID, cb.Rail, cb.ReturnCode, amount, classification); err != nil {
			return CallbackResult{}, err
		}

		f.emit(ctx, tenantID, correlationID, eventsdomain.PaymentReturned{
			InstructionID: instruction.InstructionID,
			ReturnCode:    cb.ReturnCode,
		})
		f.emit(ctx, tenantID, correlationID, eventsdomain.LiabilityClassified{
			InstructionID:  instruction.InstructionID,
			ErrorOrigin:    classification.ErrorOrigin,
			LiabilityParty: classification.LiabilityParty,
			RecoveryPath:   classification.RecoveryPath,
		})
	case orchdomain.StatusSettled:
		f.emit(ctx, tenantID, correlationID, eventsdomain.PaymentSettled{
			InstructionID: instruction.InstructionID,
		})
	}

	if err := f.orchestrator.UpdateStatus(ctx, tenantID, instruction.InstructionID, newStatus, cb.ProviderRequestID, occurredAt); err != nil {
		return CallbackResult{}, err
	}

	return CallbackResult{
		Status:         CallbackProcessed,
		InstructionID:  &instruction.InstructionID,
		PreviousStatus: previousStatus,
		NewStatus:      string(newStatus),
		CorrelationID:  correlationID,
	}, nil
}
