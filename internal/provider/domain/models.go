// Package domain is the rail provider capability contract (§6): every
// adapter implements PaymentAdapter regardless of which rail it speaks, and
// nothing outside internal/provider knows the difference.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/money"
)

// SubmissionStatus is the provider-reported status of a submitted payment,
// independent of PaymentInstruction's own state machine vocabulary.
type SubmissionStatus string

const (
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionRejected SubmissionStatus = "rejected"
	SubmissionSettled  SubmissionStatus = "settled"
	SubmissionReturned SubmissionStatus = "returned"
	SubmissionUnknown  SubmissionStatus = "unknown"
)

// SubmitRequest carries everything an adapter needs to hand an instruction
// to its rail.
type SubmitRequest struct {
	InstructionID  uuid.UUID
	TenantID       uuid.UUID
	Amount         money.Amount
	PayeeType      string
	PayeeRefID     uuid.UUID
	IdempotencyKey string
}

// SubmitResponse is the adapter's immediate synchronous answer.
type SubmitResponse struct {
	Accepted         bool
	ProviderRequestID string
	Message          string
}

// StatusResponse is the adapter's answer to a status poll.
type StatusResponse struct {
	Status        SubmissionStatus
	Amount        money.Amount
	EffectiveDate time.Time
}

// CancelResponse is the adapter's answer to a cancel request.
type CancelResponse struct {
	Accepted bool
	Message  string
}

// SettlementRecord is one row an adapter's settlement feed returns.
type SettlementRecord struct {
	ExternalTraceID  string
	ProviderRequestID string
	Direction        string // outbound | inbound
	Amount           money.Amount
	Status           string // success | return | pending
	EffectiveDate    time.Time
	ReturnCode       string
	ReturnReason     string
	RawPayload       []byte
}

// Capabilities describes what an adapter supports, so the orchestrator and
// reconciler can adapt behavior (e.g. skip a cancel attempt a rail can't
// honor) without a type switch on the rail name.
type Capabilities struct {
	Rail             string
	SupportsCancel   bool
	SupportsRealtime bool
	CutoffTimes      []string
}

// PaymentAdapter is the capability set every rail implements (§6).
type PaymentAdapter interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	Status(ctx context.Context, providerRequestID string) (StatusResponse, error)
	Cancel(ctx context.Context, providerRequestID string) (CancelResponse, error)
	PullSettlements(ctx context.Context, effectiveDate time.Time, bankAccountID uuid.UUID) ([]SettlementRecord, error)
	Capabilities() Capabilities
}
