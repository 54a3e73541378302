// Package facade is the single opinionated integration path for the PSP
// core: commit_payroll_batch, execute_payments, ingest_settlement_feed, and
// handle_provider_callback (§2, §4.7). It wires the gate, ledger,
// orchestrator, reconciler, liability, and event services together in the
// order those four operations require, and is the only place that emits
// top-level domain events.
package facade

import (
	"errors"
	"time"

	"github.com/google/uuid"

	fundinggatedomain "github.com/smallbiznis/pspcore/internal/fundinggate/domain"
	"github.com/smallbiznis/pspcore/internal/money"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
)

// CommitStatus is the result of CommitPayrollBatch.
type CommitStatus string

const (
	CommitApproved      CommitStatus = "approved"
	CommitBlockedPolicy CommitStatus = "blocked_policy"
	CommitBlockedFunds  CommitStatus = "blocked_funds"
)

// ExecuteStatus is the result of ExecutePayments.
type ExecuteStatus string

const (
	ExecuteSuccess ExecuteStatus = "success"
	ExecutePartial ExecuteStatus = "partial"
	ExecuteFailed  ExecuteStatus = "failed"
	ExecuteBlocked ExecuteStatus = "blocked"
)

// IngestStatus is the result of IngestSettlementFeed.
type IngestStatus string

const (
	IngestSuccess IngestStatus = "success"
	IngestPartial IngestStatus = "partial"
	IngestFailed  IngestStatus = "failed"
)

// CallbackStatus is the result of HandleProviderCallback.
type CallbackStatus string

const (
	CallbackProcessed CallbackStatus = "processed"
	CallbackDuplicate CallbackStatus = "duplicate"
	CallbackInvalid   CallbackStatus = "invalid"
	CallbackUnknown   CallbackStatus = "unknown"
)

// PayrollItem is a single payment within a PayrollBatch.
type PayrollItem struct {
	PayeeType      string // employee | vendor | tax_agency
	PayeeRefID     uuid.UUID
	Amount         money.Amount
	Purpose        orchdomain.Purpose
	SourceStatementOrObligationID uuid.UUID // pay_statement_id, tax_liability_id, or obligation_id, per Purpose
}

// PayrollBatch is a batch of payments to commit.
type PayrollBatch struct {
	BatchID          uuid.UUID
	TenantID         uuid.UUID
	LegalEntityID    uuid.UUID
	PayRunID         uuid.UUID
	FundingAccountID uuid.UUID
	Items            []PayrollItem
	EffectiveDate    time.Time
	IdempotencyKey   string
}

// CommitResult is returned by CommitPayrollBatch.
type CommitResult struct {
	Status        CommitStatus
	BatchID       uuid.UUID
	ReservationID *uuid.UUID
	TotalAmount   money.Amount
	ApprovedCount int
	BlockedCount  int
	BlockReason   string
	CorrelationID uuid.UUID
}

// ExecuteFailure is one item that failed to submit.
type ExecuteFailure struct {
	PayeeRefID uuid.UUID
	Amount     money.Amount
	Error      string
}

// ExecuteResult is returned by ExecutePayments.
type ExecuteResult struct {
	Status         ExecuteStatus
	BatchID        uuid.UUID
	SubmittedCount int
	FailedCount    int
	Failures       []ExecuteFailure
	CorrelationID  uuid.UUID
}

// IngestResult is returned by IngestSettlementFeed.
type IngestResult struct {
	Status           IngestStatus
	RecordsProcessed int
	RecordsMatched   int
	RecordsCreated   int
	RecordsFailed    int
	CorrelationID    uuid.UUID
}

// CallbackResult is returned by HandleProviderCallback.
type CallbackResult struct {
	Status              CallbackStatus
	InstructionID       *uuid.UUID
	PreviousStatus      string
	NewStatus           string
	CorrelationID       uuid.UUID
}

// ProviderCallback is a normalized inbound callback payload. The caller
// (an HTTP handler, a webhook consumer — both out of this module's scope)
// is responsible for authenticating the callback and mapping the
// provider's wire format into this shape.
type ProviderCallback struct {
	Rail              string
	ProviderRequestID string
	Status            string // "settled" | "returned" | any other orchdomain.Status value
	ReturnCode        string
	Amount            money.Amount
	OccurredAt        time.Time
}

var (
	ErrUnknownRail  = errors.New("facade: no adapter registered for rail")
	ErrInvalidBatch = errors.New("facade: payroll batch has no items")
	ErrInvalidCallback = errors.New("facade: callback is missing a provider_request_id")
)

// reasonSummary joins a fundinggate evaluation's reasons into one string,
// the facade's coarse-grained block explanation.
func reasonSummary(reasons []fundinggatedomain.Reason) string {
	if len(reasons) == 0 {
		return "unknown reason"
	}
	out := reasons[0].Message
	if out == "" {
		out = reasons[0].Code
	}
	for _, r := range reasons[1:] {
		msg := r.Message
		if msg == "" {
			msg = r.Code
		}
		out += "; " + msg
	}
	return out
}

func reasonsIndicateInsufficientFunds(reasons []fundinggatedomain.Reason) bool {
	for _, r := range reasons {
		if r.Code == "insufficient_funds" {
			return true
		}
	}
	return false
}
