// Package service implements the reconciler's ingest -> match -> post ->
// unmatched pipeline (§4.4).
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/pspcore/internal/clock"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
	liabilitydomain "github.com/smallbiznis/pspcore/internal/liability/domain"
	obsmetrics "github.com/smallbiznis/pspcore/internal/observability/metrics"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
	"github.com/smallbiznis/pspcore/internal/reconciler/repository"

	reconcilerdomain "github.com/smallbiznis/pspcore/internal/reconciler/domain"
)

// heuristicWindow is the ±1 business day slack the heuristic match strategy
// allows. It is approximated as calendar days, not a holiday-aware business
// calendar — a more precise window needs a bank holiday calendar, which is
// out of scope here.
const heuristicWindow = 24 * time.Hour

// Params are the service's fx-injected dependencies.
type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Ledger       ledgerdomain.Service
	Orchestrator orchdomain.Service
	Liability    liabilitydomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

// Service is the reconcilerdomain.Service implementation.
type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	ledger       ledgerdomain.Service
	orchestrator orchdomain.Service
	liability    liabilitydomain.Service
	obsMetrics   *obsmetrics.Metrics
}

// NewService builds the reconciler Service.
func NewService(p Params) reconcilerdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("reconciler.service"),
		clock:        p.Clock,
		ledger:       p.Ledger,
		orchestrator: p.Orchestrator,
		liability:    p.Liability,
		obsMetrics:   p.ObsMetrics,
	}
}

// purposePayable maps an instruction's purpose to the payable account its
// settlement posting debits (or, on return, credits back).
func purposePayable(purpose orchdomain.Purpose) ledgerdomain.AccountType {
	switch purpose {
	case orchdomain.PurposeTaxPayment:
		return ledgerdomain.AccountTypeClientTaxImpoundPayable
	case orchdomain.PurposeVendorPayment:
		return ledgerdomain.AccountTypeClientThirdPartyPayable
	default:
		return ledgerdomain.AccountTypeClientNetPayPayable
	}
}

// RunReconciliation pulls the day's settlement feed and, per record,
// isolates failures so one bad record cannot abort the run (§4.4 Failure
// model).
func (s *Service) RunReconciliation(ctx context.Context, tenantID, bankAccountID uuid.UUID, date time.Time, adapter providerdomain.PaymentAdapter) (reconcilerdomain.ReconciliationResult, error) {
	records, err := adapter.PullSettlements(ctx, date, bankAccountID)
	if err != nil {
		return reconcilerdomain.ReconciliationResult{}, err
	}

	var result reconcilerdomain.ReconciliationResult
	rail := adapter.Capabilities().Rail

	for _, rec := range records {
		result.Processed++
		if err := s.processRecord(ctx, tenantID, bankAccountID, rail, rec, &result); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ExternalTraceID, err))
		}
	}

	if s.obsMetrics != nil {
		outcome := "clean"
		if result.Failed > 0 {
			outcome = "partial"
		}
		s.obsMetrics.RecordReconciliation(ctx, rail, outcome)
	}
	return result, nil
}

func (s *Service) processRecord(ctx context.Context, tenantID, bankAccountID uuid.UUID, rail string, rec providerdomain.SettlementRecord, result *reconcilerdomain.ReconciliationResult) error {
	evt := reconcilerdomain.SettlementEvent{
		SettlementEventID: uuid.New(),
		TenantID:          tenantID,
		BankAccountID:     bankAccountID,
		ProviderName:      rail,
		Direction:         rec.Direction,
		Amount:            rec.Amount,
		ExternalTraceID:   rec.ExternalTraceID,
		EffectiveDate:     rec.EffectiveDate,
		Status:            reconcilerdomain.SettlementReceived,
		ReturnCode:        rec.ReturnCode,
		ReturnReason:      rec.ReturnReason,
		RawPayload:        rec.RawPayload,
		CreatedAt:         s.clock.Now(),
	}

	var stored reconcilerdomain.SettlementEvent
	var isNew bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stored, isNew, err = repository.UpsertSettlementEvent(ctx, tx, evt)
		return err
	})
	if err != nil {
		return err
	}
	if isNew {
		result.Created++
	}
	if stored.Status != reconcilerdomain.SettlementReceived {
		return nil // already matched or returned by a prior run
	}

	instructionID, strategy, confidence, err := s.match(ctx, tenantID, rec)
	if err != nil {
		return err
	}
	if instructionID == uuid.Nil {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return repository.MarkEventStatus(ctx, tx, tenantID, stored.SettlementEventID, reconcilerdomain.SettlementUnmatched)
		})
	}

	if err := s.link(ctx, tenantID, stored.SettlementEventID, instructionID, strategy, confidence); err != nil {
		return err
	}
	result.Matched++

	return s.post(ctx, tenantID, instructionID, rail, rec)
}

// match attempts the three strategies in order and returns the first
// unique candidate found.
func (s *Service) match(ctx context.Context, tenantID uuid.UUID, rec providerdomain.SettlementRecord) (uuid.UUID, reconcilerdomain.MatchStrategy, float64, error) {
	if rec.ProviderRequestID != "" {
		inst, err := s.orchestrator.FindByProviderRequestID(ctx, tenantID, rec.ProviderRequestID)
		if err == nil {
			return inst.InstructionID, reconcilerdomain.MatchExactTrace, 1.0, nil
		}
		if err != orchdomain.ErrInstructionNotFound {
			return uuid.Nil, "", 0, err
		}
	}

	var found uuid.UUID
	var strategy reconcilerdomain.MatchStrategy
	var confidence float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exact, err := repository.FindCandidatesByAmount(ctx, tx, tenantID, rec.Amount.Minor, rec.Amount.Currency, rec.Direction,
			rec.EffectiveDate.Truncate(24*time.Hour), rec.EffectiveDate.Truncate(24*time.Hour).Add(24*time.Hour))
		if err != nil {
			return err
		}
		if len(exact) == 1 {
			found, strategy, confidence = exact[0], reconcilerdomain.MatchAmountDate, 0.9
			return nil
		}
		if len(exact) > 1 {
			return nil // ambiguous, fall through to unmatched
		}

		window, err := repository.FindCandidatesByAmount(ctx, tx, tenantID, rec.Amount.Minor, rec.Amount.Currency, rec.Direction,
			rec.EffectiveDate.Truncate(24*time.Hour).Add(-heuristicWindow), rec.EffectiveDate.Truncate(24*time.Hour).Add(2*heuristicWindow))
		if err != nil {
			return err
		}
		if len(window) == 1 {
			found, strategy, confidence = window[0], reconcilerdomain.MatchHeuristic, 0.6
		}
		return nil
	})
	return found, strategy, confidence, err
}

func (s *Service) link(ctx context.Context, tenantID, settlementEventID, instructionID uuid.UUID, strategy reconcilerdomain.MatchStrategy, confidence float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.InsertLink(ctx, tx, reconcilerdomain.SettlementLink{
			SettlementLinkID:  uuid.New(),
			TenantID:          tenantID,
			SettlementEventID: settlementEventID,
			InstructionID:     instructionID,
			Strategy:          strategy,
			Confidence:        confidence,
			CreatedAt:         s.clock.Now(),
		}); err != nil {
			return err
		}
		status := reconcilerdomain.SettlementMatched
		return repository.MarkEventStatus(ctx, tx, tenantID, settlementEventID, status)
	})
}

// post applies the settlement's ledger consequence: settled postings debit
// the purpose payable and credit the clearing account; returns reverse that
// exact posting (never UPDATE) and hand off to the liability classifier.
func (s *Service) post(ctx context.Context, tenantID, instructionID uuid.UUID, rail string, rec providerdomain.SettlementRecord) error {
	inst, err := s.orchestrator.Get(ctx, tenantID, instructionID)
	if err != nil {
		return err
	}

	payable := purposePayable(inst.Purpose)
	payableAccount, err := s.ledger.GetOrCreateAccount(ctx, tenantID, inst.LegalEntityID, payable, inst.Amount.Currency)
	if err != nil {
		return err
	}
	clearingAccount, err := s.ledger.GetOrCreateAccount(ctx, tenantID, inst.LegalEntityID, ledgerdomain.AccountTypePSPSettlementClearing, inst.Amount.Currency)
	if err != nil {
		return err
	}

	switch rec.Status {
	case "success":
		if err := s.orchestrator.UpdateStatus(ctx, tenantID, instructionID, orchdomain.StatusSettled, rec.ProviderRequestID, rec.EffectiveDate); err != nil {
			return err
		}
		_, err := s.ledger.Post(ctx, tenantID, instructionID, "settlement:"+instructionID.String()+":post", []ledgerdomain.LedgerEntry{
			{AccountID: payableAccount.AccountID, Direction: ledgerdomain.Debit, Amount: inst.Amount, SourceType: "payment_instruction", SourceID: instructionID},
			{AccountID: clearingAccount.AccountID, Direction: ledgerdomain.Credit, Amount: inst.Amount, SourceType: "payment_instruction", SourceID: instructionID},
		})
		return err

	case "return":
		if err := s.orchestrator.UpdateStatus(ctx, tenantID, instructionID, orchdomain.StatusReturned, rec.ProviderRequestID, rec.EffectiveDate); err != nil {
			return err
		}
		if _, err := s.ledger.Post(ctx, tenantID, instructionID, "settlement:"+instructionID.String()+":return", []ledgerdomain.LedgerEntry{
			{AccountID: payableAccount.AccountID, Direction: ledgerdomain.Credit, Amount: inst.Amount, SourceType: "payment_instruction", SourceID: instructionID},
			{AccountID: clearingAccount.AccountID, Direction: ledgerdomain.Debit, Amount: inst.Amount, SourceType: "payment_instruction", SourceID: instructionID},
		}); err != nil {
			return err
		}
		class := s.liability.ClassifyReturn(rail, rec.ReturnCode, inst.Amount)
		_, err := s.liability.RecordLiabilityEvent(ctx, tenantID, instructionID, rail, rec.ReturnCode, inst.Amount, class)
		return err

	default:
		return nil // pending: leave matched, not settled
	}
}
