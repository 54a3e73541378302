// Package service is the gorm-transactional implementation of
// paymentorchestrator/domain.Service: instruction creation, submission to a
// rail adapter, and status transitions.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/pspcore/internal/clock"
	"github.com/smallbiznis/pspcore/internal/money"
	obsmetrics "github.com/smallbiznis/pspcore/internal/observability/metrics"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
	"github.com/smallbiznis/pspcore/internal/paymentorchestrator/repository"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
)

// Config holds the submission tunables derived from process config.
type Config struct {
	// SubmitTimeout bounds a single adapter.Submit call. When it elapses,
	// the attempt is recorded "unknown" rather than "failed" — the rail may
	// still have accepted it — and the instruction stays submitted pending
	// callback or reconciliation.
	SubmitTimeout time.Duration
}

// defaultSubmitTimeout applies when Config.SubmitTimeout is unset, which is
// the case for Service values built directly in tests rather than through
// NewService.
const defaultSubmitTimeout = 20 * time.Second

// Params are the service's fx-injected dependencies.
type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service is the gorm-transactional orchdomain.Service implementation. It
// takes the resolved provider.PaymentAdapter as an explicit Submit argument
// rather than owning a rail registry itself — the facade resolves which
// adapter a payee's rail maps to and hands it in per call.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	submitTimeout time.Duration
	obsMetrics    *obsmetrics.Metrics
}

// NewService builds the payment orchestrator Service.
func NewService(p Params) orchdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("paymentorchestrator.service"),
		clock:         p.Clock,
		submitTimeout: p.Config.SubmitTimeout,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) submitTimeoutOrDefault() time.Duration {
	if s.submitTimeout > 0 {
		return s.submitTimeout
	}
	return defaultSubmitTimeout
}

func (s *Service) createInstruction(
	ctx context.Context,
	tenantID, legalEntityID uuid.UUID,
	purpose orchdomain.Purpose,
	amount money.Amount,
	payeeType string,
	payeeRefID uuid.UUID,
	detail orchdomain.Detail,
	sourceType string,
	sourceID uuid.UUID,
	idempotencyKey string,
) (orchdomain.CreateResult, error) {
	var result orchdomain.CreateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repository.FindByIdempotencyKey(ctx, tx, tenantID, idempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			result = orchdomain.CreateResult{InstructionID: existing.InstructionID, Replayed: true}
			return nil
		}

		inst := orchdomain.PaymentInstruction{
			InstructionID:  uuid.New(),
			TenantID:       tenantID,
			LegalEntityID:  legalEntityID,
			Purpose:        purpose,
			Direction:      "outbound",
			Amount:         amount,
			PayeeType:      payeeType,
			PayeeRefID:     payeeRefID,
			Detail:         detail,
			SourceType:     sourceType,
			SourceID:       sourceID,
			Status:         orchdomain.StatusDraft,
			CreatedAt:      s.clock.Now(),
			IdempotencyKey: idempotencyKey,
		}
		if err := repository.InsertInstruction(ctx, tx, inst); err != nil {
			return err
		}
		result = orchdomain.CreateResult{InstructionID: inst.InstructionID, Replayed: false}
		return nil
	})
	return result, err
}

func (s *Service) CreateEmployeeNetInstruction(ctx context.Context, tenantID, legalEntityID, employeeID, payStatementID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (orchdomain.CreateResult, error) {
	return s.createInstruction(ctx, tenantID, legalEntityID, orchdomain.PurposeEmployeeNet, amount,
		"employee", employeeID,
		orchdomain.EmployeeNetDetail{EmployeeID: employeeID, PayStatementID: payStatementID},
		sourceType, sourceID, idempotencyKey)
}

func (s *Service) CreateTaxInstruction(ctx context.Context, tenantID, legalEntityID, taxAgencyID, taxLiabilityID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (orchdomain.CreateResult, error) {
	return s.createInstruction(ctx, tenantID, legalEntityID, orchdomain.PurposeTaxPayment, amount,
		"tax_agency", taxAgencyID,
		orchdomain.TaxPaymentDetail{TaxAgencyID: taxAgencyID, TaxLiabilityID: taxLiabilityID},
		sourceType, sourceID, idempotencyKey)
}

func (s *Service) CreateThirdPartyInstruction(ctx context.Context, tenantID, legalEntityID, providerID, obligationID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (orchdomain.CreateResult, error) {
	return s.createInstruction(ctx, tenantID, legalEntityID, orchdomain.PurposeVendorPayment, amount,
		"vendor", providerID,
		orchdomain.VendorPaymentDetail{ProviderID: providerID, ObligationID: obligationID},
		sourceType, sourceID, idempotencyKey)
}

func (s *Service) Get(ctx context.Context, tenantID, instructionID uuid.UUID) (orchdomain.PaymentInstruction, error) {
	var inst *orchdomain.PaymentInstruction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inst, err = repository.FindByID(ctx, tx, tenantID, instructionID)
		return err
	})
	if err != nil {
		return orchdomain.PaymentInstruction{}, err
	}
	if inst == nil {
		return orchdomain.PaymentInstruction{}, orchdomain.ErrInstructionNotFound
	}
	return *inst, nil
}

// FindByProviderRequestID resolves the instruction a provider callback
// refers to via its most recent attempt.
func (s *Service) FindByProviderRequestID(ctx context.Context, tenantID uuid.UUID, providerRequestID string) (orchdomain.PaymentInstruction, error) {
	var inst *orchdomain.PaymentInstruction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inst, err = repository.FindByProviderRequestID(ctx, tx, tenantID, providerRequestID)
		return err
	})
	if err != nil {
		return orchdomain.PaymentInstruction{}, err
	}
	if inst == nil {
		return orchdomain.PaymentInstruction{}, orchdomain.ErrInstructionNotFound
	}
	return *inst, nil
}

// submitPrep is what the load/validate transaction hands to the unguarded
// provider call.
type submitPrep struct {
	inst      orchdomain.PaymentInstruction
	attemptNo int
}

// Submit hands a draft instruction to adapter. A submission already in
// flight is reused rather than resubmitted, so a retried call after a
// provider timeout does not double-pay.
//
// The draft is loaded and validated in one transaction, which commits before
// adapter.Submit runs: no database transaction is held across the provider
// call. The provider call itself is bounded by submitTimeoutOrDefault; on
// deadline the attempt is recorded "unknown" and the instruction is left
// submitted rather than failed, since the rail may have accepted it. A
// second, CAS-guarded transaction then records the attempt and advances the
// instruction's status.
func (s *Service) Submit(ctx context.Context, tenantID, instructionID uuid.UUID, adapter providerdomain.PaymentAdapter) (orchdomain.SubmissionResult, error) {
	var prep *submitPrep
	var inFlight *orchdomain.PaymentAttempt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := repository.FindByID(ctx, tx, tenantID, instructionID)
		if err != nil {
			return err
		}
		if inst == nil {
			return orchdomain.ErrInstructionNotFound
		}

		active, err := repository.FindActiveAttempt(ctx, tx, instructionID)
		if err != nil {
			return err
		}
		if active != nil {
			inFlight = active
			return nil
		}

		if inst.Status != orchdomain.StatusDraft {
			return orchdomain.ErrInvalidTransition
		}

		attemptNo, err := repository.NextAttemptNo(ctx, tx, instructionID)
		if err != nil {
			return err
		}

		prep = &submitPrep{inst: *inst, attemptNo: attemptNo}
		return nil
	})
	if err != nil {
		return orchdomain.SubmissionResult{}, err
	}
	if inFlight != nil {
		return orchdomain.SubmissionResult{
			Accepted:          true,
			AttemptID:         inFlight.AttemptID,
			ProviderRequestID: inFlight.ProviderRequestID,
			Message:           "submission already in flight",
		}, nil
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeoutOrDefault())
	resp, submitErr := adapter.Submit(submitCtx, providerdomain.SubmitRequest{
		InstructionID:  prep.inst.InstructionID,
		TenantID:       prep.inst.TenantID,
		Amount:         prep.inst.Amount,
		PayeeType:      prep.inst.PayeeType,
		PayeeRefID:     prep.inst.PayeeRefID,
		IdempotencyKey: prep.inst.IdempotencyKey,
	})
	cancel()

	attempt := orchdomain.PaymentAttempt{
		AttemptID:     uuid.New(),
		TenantID:      tenantID,
		InstructionID: instructionID,
		ProviderName:  adapter.Capabilities().Rail,
		AttemptNo:     prep.attemptNo,
		SubmittedAt:   s.clock.Now(),
	}

	var result orchdomain.SubmissionResult
	nextStatus := orchdomain.StatusSubmitted
	switch {
	case errors.Is(submitCtx.Err(), context.DeadlineExceeded):
		attempt.Status = "unknown"
		attempt.ResponsePayload = []byte("provider call timed out before a response was received")
		nextStatus = orchdomain.StatusSubmitted
		result = orchdomain.SubmissionResult{
			Accepted: true,
			Message:  "submission outcome unknown: provider call timed out",
		}
	case submitErr != nil || !resp.Accepted:
		attempt.Status = "failed"
		nextStatus = orchdomain.StatusFailed
		if submitErr != nil {
			attempt.ResponsePayload = []byte(submitErr.Error())
			result = orchdomain.SubmissionResult{Message: submitErr.Error()}
		} else {
			attempt.ResponsePayload = []byte(resp.Message)
			result = orchdomain.SubmissionResult{Message: resp.Message}
		}
	default:
		attempt.Status = "submitted"
		attempt.ProviderRequestID = resp.ProviderRequestID
		result = orchdomain.SubmissionResult{
			Accepted:          true,
			ProviderRequestID: resp.ProviderRequestID,
			Message:           resp.Message,
		}
	}
	result.AttemptID = attempt.AttemptID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.InsertAttempt(ctx, tx, attempt); err != nil {
			return err
		}
		ok, err := repository.UpdateInstructionStatus(ctx, tx, tenantID, instructionID, orchdomain.StatusDraft, nextStatus)
		if err != nil {
			return err
		}
		if !ok {
			return orchdomain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return orchdomain.SubmissionResult{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordInstructionTransition(ctx, adapter.Capabilities().Rail, adapter.Capabilities().Rail, attempt.Status)
	}
	return result, nil
}

// UpdateStatus applies a callback's reported status, walking the legal
// chain of intermediate hops rather than jumping straight to the reported
// state (Resolved Open Question 2). occurredAt is not stored and does not
// decide whether the move is accepted: a move with no legal path (e.g.
// settled after returned) is rejected whatever its occurredAt.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, instructionID uuid.UUID, newStatus orchdomain.Status, providerRequestID string, occurredAt time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := repository.FindByID(ctx, tx, tenantID, instructionID)
		if err != nil {
			return err
		}
		if inst == nil {
			return orchdomain.ErrInstructionNotFound
		}
		if inst.TenantID != tenantID {
			return orchdomain.ErrCrossTenant
		}
		if inst.Status == newStatus {
			return nil // idempotent replay of a duplicate callback
		}

		chain, ok := legalChain(inst.Status, newStatus)
		if !ok {
			return orchdomain.ErrInvalidTransition
		}

		from := inst.Status
		for _, to := range chain {
			applied, err := repository.UpdateInstructionStatus(ctx, tx, tenantID, instructionID, from, to)
			if err != nil {
				return err
			}
			if !applied {
				return orchdomain.ErrInvalidTransition
			}
			from = to
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordInstructionTransition(ctx, "", "", string(newStatus))
		}
		return nil
	})
}
