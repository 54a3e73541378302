// Package domain holds the domain event envelope, its tagged payload
// variants, and the Emitter/Store contracts (§4.6, Design Note 1).
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Kind identifies a DomainEvent's payload type.
type Kind string

const (
	KindFundingRequested          Kind = "funding_requested"
	KindFundingApproved           Kind = "funding_approved"
	KindFundingBlocked            Kind = "funding_blocked"
	KindFundingInsufficientFunds  Kind = "funding_insufficient_funds"
	KindPaymentInstructionCreated Kind = "payment_instruction_created"
	KindPaymentSubmitted          Kind = "payment_submitted"
	KindPaymentFailed             Kind = "payment_failed"
	KindPaymentSettled            Kind = "payment_settled"
	KindPaymentReturned           Kind = "payment_returned"
	KindReconciliationStarted     Kind = "reconciliation_started"
	KindReconciliationCompleted   Kind = "reconciliation_completed"
	KindSettlementReceived        Kind = "settlement_received"
	KindLiabilityClassified       Kind = "liability_classified"
)

// Payload is implemented by each event kind's typed body. The kind tag on
// DomainEvent and the concrete Payload type always agree, so a handler that
// type-switches on Payload never needs a default case to catch drift.
type Payload interface {
	Kind() Kind
}

type FundingRequested struct {
	PayRunID       uuid.UUID
	FundingModel   string
	RequiredAmount int64
	Currency       string
}

func (FundingRequested) Kind() Kind { return KindFundingRequested }

type FundingApproved struct {
	PayRunID        uuid.UUID
	AvailableAmount int64
	Currency        string
}

func (FundingApproved) Kind() Kind { return KindFundingApproved }

type FundingBlocked struct {
	PayRunID uuid.UUID
	Reasons  []string
}

func (FundingBlocked) Kind() Kind { return KindFundingBlocked }

type FundingInsufficientFunds struct {
	PayRunID  uuid.UUID
	Shortfall int64
	Currency  string
}

func (FundingInsufficientFunds) Kind() Kind { return KindFundingInsufficientFunds }

type PaymentInstructionCreated struct {
	InstructionID uuid.UUID
	Purpose       string
	AmountMinor   int64
	Currency      string
}

func (PaymentInstructionCreated) Kind() Kind { return KindPaymentInstructionCreated }

type PaymentSubmitted struct {
	InstructionID     uuid.UUID
	ProviderRequestID string
}

func (PaymentSubmitted) Kind() Kind { return KindPaymentSubmitted }

type PaymentFailed struct {
	InstructionID uuid.UUID
	Message       string
}

func (PaymentFailed) Kind() Kind { return KindPaymentFailed }

type PaymentSettled struct {
	InstructionID uuid.UUID
}

func (PaymentSettled) Kind() Kind { return KindPaymentSettled }

type PaymentReturned struct {
	InstructionID uuid.UUID
	ReturnCode    string
}

func (PaymentReturned) Kind() Kind { return KindPaymentReturned }

type ReconciliationStarted struct {
	BankAccountID uuid.UUID
	Date          time.Time
}

func (ReconciliationStarted) Kind() Kind { return KindReconciliationStarted }

type ReconciliationCompleted struct {
	Processed int
	Matched   int
	Failed    int
}

func (ReconciliationCompleted) Kind() Kind { return KindReconciliationCompleted }

type SettlementReceived struct {
	SettlementEventID uuid.UUID
	InstructionID     uuid.UUID
}

func (SettlementReceived) Kind() Kind { return KindSettlementReceived }

type LiabilityClassified struct {
	InstructionID  uuid.UUID
	ErrorOrigin    string
	LiabilityParty string
	RecoveryPath   string
}

func (LiabilityClassified) Kind() Kind { return KindLiabilityClassified }

// DomainEvent is the envelope every payload travels in.
type DomainEvent struct {
	EventID       ulid.ULID
	TenantID      uuid.UUID
	CorrelationID uuid.UUID
	CausationID   *ulid.ULID
	Kind          Kind
	OccurredAt    time.Time
	Payload       Payload
}

// EventSubscription is a durable record of a registered external consumer
// of a tenant's events (§6 persisted state layout). Dispatch to these
// subscriptions is out of scope here — the table exists so a future
// delivery worker has somewhere to read its registry from; in-process
// handlers registered with Emitter.Subscribe are independent of this table.
type EventSubscription struct {
	SubscriptionID uuid.UUID
	TenantID       uuid.UUID
	Kind           Kind
	HandlerName    string
	Active         bool
	CreatedAt      time.Time
}

// Handler is called once per event, in registration order. A handler error
// is logged by the Emitter (not collected), never propagated to the caller
// of Emit and never stops subsequent handlers from running.
type Handler func(ctx context.Context, event DomainEvent) error

// Filter narrows LoadBy's result set; zero-value fields are unconstrained.
type Filter struct {
	Kind  Kind
	Since time.Time
	Limit int
}

// Emitter persists an event and synchronously fans it out to every
// registered Handler.
type Emitter interface {
	Subscribe(handler Handler)
	Emit(ctx context.Context, tenantID, correlationID uuid.UUID, causationID *ulid.ULID, payload Payload) (DomainEvent, error)
}

// Store is the append-only backing store Emitter writes through to.
type Store interface {
	Append(ctx context.Context, event DomainEvent) error
	LoadBy(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]DomainEvent, error)
	Replay(ctx context.Context, tenantID uuid.UUID, fromEventID ulid.ULID) ([]DomainEvent, error)
}
