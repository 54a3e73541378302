// Package domain holds the liability classifier's types and Service
// contract. Classification is a pure function of (rail, code); persistence
// of the result is a separate step so the classifier stays table-driven and
// testable without a database.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/money"
)

// Classification is the outcome of classifying a return code.
type Classification struct {
	ErrorOrigin         string // client_funding | employee_data | psp_process | provider | unknown
	LiabilityParty      string // client | psp
	RecoveryPath        string // debit_client | client_remediation | writeoff | manual
	DeterminationReason string
}

// LiabilityEvent is the immutable record of one classified return.
type LiabilityEvent struct {
	LiabilityEventID uuid.UUID
	TenantID         uuid.UUID
	InstructionID    uuid.UUID
	Rail             string
	ReturnCode       string
	Amount           money.Amount
	Classification   Classification
	CreatedAt        time.Time
}

// Service classifies returns and records the classification.
type Service interface {
	ClassifyReturn(rail, returnCode string, amount money.Amount) Classification
	RecordLiabilityEvent(ctx context.Context, tenantID, instructionID uuid.UUID, rail, returnCode string, amount money.Amount, class Classification) (LiabilityEvent, error)
}
