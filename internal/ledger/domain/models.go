// Package domain holds the ledger's types, sentinel errors, and the
// Service contract other modules depend on.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/money"
)

// AccountType enumerates the chart of accounts this PSP operates.
type AccountType string

const (
	AccountTypeClientFundingClearing   AccountType = "client_funding_clearing"
	AccountTypeClientNetPayPayable     AccountType = "client_net_pay_payable"
	AccountTypeClientTaxImpoundPayable AccountType = "client_tax_impound_payable"
	AccountTypeClientThirdPartyPayable AccountType = "client_third_party_payable"
	AccountTypePSPSettlementClearing   AccountType = "psp_settlement_clearing"
	AccountTypePSPFeesRevenue          AccountType = "psp_fees_revenue"
)

// EntryDirection is debit or credit.
type EntryDirection string

const (
	Debit  EntryDirection = "debit"
	Credit EntryDirection = "credit"
)

// ReservationStatus is the lifecycle state of a Reservation.
type ReservationStatus string

const (
	ReservationHeld     ReservationStatus = "held"
	ReservationConsumed ReservationStatus = "consumed"
	ReservationReleased ReservationStatus = "released"
	ReservationExpired  ReservationStatus = "expired"
)

// LedgerAccount is uniquely identified by (tenant, legal entity, account
// type, currency). Created on first use, never deleted.
type LedgerAccount struct {
	AccountID     uuid.UUID
	TenantID      uuid.UUID
	LegalEntityID uuid.UUID
	AccountType   AccountType
	Currency      string
	Active        bool
	CreatedAt     time.Time
}

// LedgerEntry is one immutable debit or credit line. Entries sharing a
// CorrelationID form a posting; Σdebits = Σcredits per currency within it.
type LedgerEntry struct {
	EntryID        uuid.UUID
	TenantID       uuid.UUID
	AccountID      uuid.UUID
	Direction      EntryDirection
	Amount         money.Amount
	PostedAt       time.Time
	SourceType     string
	SourceID       uuid.UUID
	CorrelationID  uuid.UUID
	IdempotencyKey string
}

// Reservation holds funds between commit and pay. A held reservation
// reduces the available balance of its account but never the posted one.
type Reservation struct {
	ReservationID uuid.UUID
	TenantID      uuid.UUID
	LegalEntityID uuid.UUID
	ReserveType   string
	Amount        money.Amount
	Status        ReservationStatus
	SourceType    string
	SourceID      uuid.UUID
	TTL           time.Duration
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Balance is derived, never stored.
type Balance struct {
	AccountID uuid.UUID
	Currency  string
	Posted    int64
	Reserved  int64
	Available int64
}

// PostResult is returned by Post, identical across idempotent replays.
type PostResult struct {
	CorrelationID uuid.UUID
	Entries       []LedgerEntry
	Replayed      bool
}

var (
	ErrUnbalancedPosting   = errors.New("ledger: debits and credits are not balanced per currency")
	ErrEmptyPosting        = errors.New("ledger: a posting must contain at least two entries")
	ErrCrossTenantPosting  = errors.New("ledger: all entries in a posting must belong to the same tenant")
	ErrInvalidEntryAmount  = errors.New("ledger: entry amount must be positive")
	ErrAccountNotFound     = errors.New("ledger: account not found")
	ErrReservationNotFound = errors.New("ledger: reservation not found")
	ErrReservationClosed   = errors.New("ledger: reservation is not held")
	ErrIdempotencyConflict = errors.New("ledger: idempotency key reused with a divergent posting")
)

// Service is the ledger's contract: post double-entry postings, derive
// balances, and manage reservations.
type Service interface {
	Post(ctx context.Context, tenantID, correlationID uuid.UUID, idempotencyKey string, entries []LedgerEntry) (PostResult, error)
	GetBalance(ctx context.Context, tenantID, accountID uuid.UUID) (Balance, error)
	GetOrCreateAccount(ctx context.Context, tenantID, legalEntityID uuid.UUID, accountType AccountType, currency string) (LedgerAccount, error)
	CreateReservation(ctx context.Context, tenantID, legalEntityID uuid.UUID, reserveType string, amount money.Amount, sourceType string, sourceID uuid.UUID, ttl time.Duration) (Reservation, error)
	ReleaseReservation(ctx context.Context, tenantID, reservationID uuid.UUID, consumed bool) error
}
