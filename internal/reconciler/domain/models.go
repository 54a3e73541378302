// Package domain holds the reconciler's types and Service contract: match
// settlement feed records to instructions and post their ledger
// consequences.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/money"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
)

// SettlementStatus is a SettlementEvent's match lifecycle state.
type SettlementStatus string

const (
	SettlementReceived  SettlementStatus = "received"
	SettlementMatched   SettlementStatus = "matched"
	SettlementUnmatched SettlementStatus = "unmatched"
	SettlementReturned  SettlementStatus = "returned"
)

// MatchStrategy is how a SettlementLink's match was found.
type MatchStrategy string

const (
	MatchExactTrace MatchStrategy = "exact_trace"
	MatchAmountDate MatchStrategy = "amount_date"
	MatchHeuristic  MatchStrategy = "heuristic"
)

// SettlementEvent is one row received from a rail's settlement feed,
// idempotent on (tenant, provider, external_trace_id).
type SettlementEvent struct {
	SettlementEventID uuid.UUID
	TenantID          uuid.UUID
	BankAccountID     uuid.UUID
	ProviderName      string
	Direction         string // outbound | inbound
	Amount            money.Amount
	ExternalTraceID   string
	EffectiveDate     time.Time
	Status            SettlementStatus
	ReturnCode        string
	ReturnReason      string
	RawPayload        []byte
	CreatedAt         time.Time
}

// SettlementLink ties a SettlementEvent to the instruction it was matched
// to. Append-only: a settlement is linked once and never relinked.
type SettlementLink struct {
	SettlementLinkID  uuid.UUID
	TenantID          uuid.UUID
	SettlementEventID uuid.UUID
	InstructionID     uuid.UUID
	Strategy          MatchStrategy
	Confidence        float64
	CreatedAt         time.Time
}

// ReconciliationResult summarizes one run.
type ReconciliationResult struct {
	Processed int
	Matched   int
	Created   int
	Failed    int
	Errors    []string
}

// Service runs a reconciliation pass for one tenant/date/bank account.
type Service interface {
	RunReconciliation(ctx context.Context, tenantID, bankAccountID uuid.UUID, date time.Time, adapter providerdomain.PaymentAdapter) (ReconciliationResult, error)
}
