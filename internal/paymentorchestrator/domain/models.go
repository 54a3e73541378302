// Package domain holds the payment instruction state machine, its
// purpose-tagged creation payloads, and the Service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/money"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
)

// Purpose is why an instruction moves money, and determines its Detail type.
type Purpose string

const (
	PurposeEmployeeNet  Purpose = "employee_net"
	PurposeTaxPayment   Purpose = "tax_payment"
	PurposeVendorPayment Purpose = "vendor_payment"
)

// Status is an instruction's lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusSettled   Status = "settled"
	StatusFailed    Status = "failed"
	StatusReturned  Status = "returned"
	StatusCanceled  Status = "canceled"
)

// Detail is the purpose-specific payload replacing an untyped metadata map:
// the purpose tag and the Detail type always agree, so an unhandled purpose
// is a compile-time switch-completeness concern rather than a runtime
// fallback to the wrong payee.
type Detail interface {
	isDetail()
}

// EmployeeNetDetail is carried by a PurposeEmployeeNet instruction.
type EmployeeNetDetail struct {
	EmployeeID     uuid.UUID
	PayStatementID uuid.UUID
}

func (EmployeeNetDetail) isDetail() {}

// TaxPaymentDetail is carried by a PurposeTaxPayment instruction.
type TaxPaymentDetail struct {
	TaxAgencyID    uuid.UUID
	TaxLiabilityID uuid.UUID
}

func (TaxPaymentDetail) isDetail() {}

// VendorPaymentDetail is carried by a PurposeVendorPayment instruction.
type VendorPaymentDetail struct {
	ProviderID  uuid.UUID
	ObligationID uuid.UUID
}

func (VendorPaymentDetail) isDetail() {}

// PaymentInstruction is one outbound (or inbound) payment.
type PaymentInstruction struct {
	InstructionID  uuid.UUID
	TenantID       uuid.UUID
	LegalEntityID  uuid.UUID
	Purpose        Purpose
	Direction      string // outbound | inbound
	Amount         money.Amount
	PayeeType      string
	PayeeRefID     uuid.UUID
	Detail         Detail
	SourceType     string
	SourceID       uuid.UUID
	Status         Status
	CreatedAt      time.Time
	IdempotencyKey string
}

// PaymentAttempt is one submission of an instruction to a provider.
type PaymentAttempt struct {
	AttemptID         uuid.UUID
	TenantID          uuid.UUID
	InstructionID     uuid.UUID
	ProviderName      string
	ProviderRequestID string
	AttemptNo         int
	Status            string
	SubmittedAt       time.Time
	ResponsePayload   []byte
}

// CreateResult is returned by every purpose-specific creation method.
type CreateResult struct {
	InstructionID uuid.UUID
	Replayed      bool
}

// SubmissionResult is returned by Submit.
type SubmissionResult struct {
	Accepted          bool
	AttemptID         uuid.UUID
	ProviderRequestID string
	Message           string
}

var (
	ErrUnknownPurpose      = errors.New("paymentorchestrator: unrecognized payment purpose")
	ErrInstructionNotFound = errors.New("paymentorchestrator: instruction not found")
	ErrInvalidTransition   = errors.New("paymentorchestrator: status transition is not legal")
	ErrAttemptInFlight     = errors.New("paymentorchestrator: a submission attempt is already in flight")
	ErrCrossTenant         = errors.New("paymentorchestrator: instruction belongs to a different tenant")
)

// Service creates, submits, and transitions payment instructions.
type Service interface {
	CreateEmployeeNetInstruction(ctx context.Context, tenantID, legalEntityID, employeeID, payStatementID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (CreateResult, error)
	CreateTaxInstruction(ctx context.Context, tenantID, legalEntityID, taxAgencyID, taxLiabilityID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (CreateResult, error)
	CreateThirdPartyInstruction(ctx context.Context, tenantID, legalEntityID, providerID, obligationID uuid.UUID, amount money.Amount, sourceType string, sourceID uuid.UUID, idempotencyKey string) (CreateResult, error)

	Get(ctx context.Context, tenantID, instructionID uuid.UUID) (PaymentInstruction, error)
	FindByProviderRequestID(ctx context.Context, tenantID uuid.UUID, providerRequestID string) (PaymentInstruction, error)
	Submit(ctx context.Context, tenantID, instructionID uuid.UUID, adapter providerdomain.PaymentAdapter) (SubmissionResult, error)
	UpdateStatus(ctx context.Context, tenantID, instructionID uuid.UUID, newStatus Status, providerRequestID string, occurredAt time.Time) error
}
