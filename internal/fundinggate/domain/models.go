// Package domain holds the funding gate's result types, reason codes, and
// the Service contract.
package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/money"
)

// FundingModel is the pre-funding strategy for a pay run.
type FundingModel string

const (
	FundingModelPrefundAll   FundingModel = "prefund_all"
	FundingModelPrefundTaxes FundingModel = "prefund_taxes"
	FundingModelPostfund     FundingModel = "postfund"
)

// Severity distinguishes a blocking reason from an informational one.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
	SeverityInfo  Severity = "info"
)

// Reason is one entry in a GateResult's explanation.
type Reason struct {
	Code     string
	Message  string
	Severity Severity
	Data     map[string]any
}

// GateResult is the outcome of a commit-gate or pay-gate evaluation.
type GateResult struct {
	Passed          bool
	AvailableAmount money.Amount
	RequiredAmount  money.Amount
	Shortfall       money.Amount
	Reasons         []Reason
}

// UpstreamPayRunState is the input field carrying the state of the payroll
// calculation this gate treats as an external, already-computed upstream
// producer (payroll gross-to-net calculation is out of scope).
type UpstreamPayRunState string

const (
	// PayRunReadyForCommit is the only state the commit-gate accepts.
	PayRunReadyForCommit UpstreamPayRunState = "ready_for_commit"
)

// CommitGateRequest is the input to EvaluateCommitGate.
type CommitGateRequest struct {
	TenantID       uuid.UUID
	LegalEntityID  uuid.UUID
	PayRunID       uuid.UUID
	PayRunState    UpstreamPayRunState
	FundingModel   FundingModel
	RequiredAmount money.Amount
	Strict         bool
	IdempotencyKey string
}

// PayGateRequest is the input to EvaluatePayGate.
type PayGateRequest struct {
	TenantID       uuid.UUID
	LegalEntityID  uuid.UUID
	PayRunID       uuid.UUID
	IdempotencyKey string
}

var (
	ErrUnrecognizedFundingModel = errors.New("fundinggate: funding model is not recognized")
	ErrInvalidPayRunState       = errors.New("fundinggate: pay run is not in a valid upstream state")
	ErrNoCommitGateApproval     = errors.New("fundinggate: no approved commit-gate evaluation for this pay run")
	ErrNoHeldReservation        = errors.New("fundinggate: no held reservation covers this pay run")
	ErrFundingAccountFrozen     = errors.New("fundinggate: funding account is frozen")
)

// Service evaluates commit-time and pay-time funding gates.
type Service interface {
	EvaluateCommitGate(ctx context.Context, req CommitGateRequest) (GateResult, error)
	EvaluatePayGate(ctx context.Context, req PayGateRequest) (GateResult, error)
}
