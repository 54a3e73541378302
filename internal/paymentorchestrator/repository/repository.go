// Package repository holds payment_instruction and payment_attempt raw-SQL
// accessors. Detail is purpose-tagged (see domain.Detail), so it is
// serialized to JSON alongside the purpose discriminant rather than routed
// through a generic CRUD store.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/payloadcodec"
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
	"github.com/smallbiznis/pspcore/internal/money"
	"gorm.io/gorm"
)

type instructionRow struct {
	InstructionID  uuid.UUID
	TenantID       uuid.UUID
	LegalEntityID  uuid.UUID
	Purpose        string
	Direction      string
	AmountMinor    int64
	Currency       string
	PayeeType      string
	PayeeRefID     uuid.UUID
	DetailJSON     []byte
	SourceType     string
	SourceID       uuid.UUID
	Status         string
	CreatedAt      time.Time
	IdempotencyKey string
}

func decodeDetail(purpose string, raw []byte) (orchdomain.Detail, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch orchdomain.Purpose(purpose) {
	case orchdomain.PurposeEmployeeNet:
		var d orchdomain.EmployeeNetDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case orchdomain.PurposeTaxPayment:
		var d orchdomain.TaxPaymentDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case orchdomain.PurposeVendorPayment:
		var d orchdomain.VendorPaymentDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, orchdomain.ErrUnknownPurpose
	}
}

func (r instructionRow) toDomain() (orchdomain.PaymentInstruction, error) {
	detail, err := decodeDetail(r.Purpose, r.DetailJSON)
	if err != nil {
		return orchdomain.PaymentInstruction{}, err
	}
	return orchdomain.PaymentInstruction{
		InstructionID:  r.InstructionID,
		TenantID:       r.TenantID,
		LegalEntityID:  r.LegalEntityID,
		Purpose:        orchdomain.Purpose(r.Purpose),
		Direction:      r.Direction,
		Amount:         money.Amount{Minor: r.AmountMinor, Currency: r.Currency},
		PayeeType:      r.PayeeType,
		PayeeRefID:     r.PayeeRefID,
		Detail:         detail,
		SourceType:     r.SourceType,
		SourceID:       r.SourceID,
		Status:         orchdomain.Status(r.Status),
		CreatedAt:      r.CreatedAt,
		IdempotencyKey: r.IdempotencyKey,
	}, nil
}

const instructionColumns = `instruction_id, tenant_id, legal_entity_id, purpose, direction, amount_minor,
	currency, payee_type, payee_ref_id, detail_json, source_type, source_id, status, created_at, idempotency_key`

// FindByIdempotencyKey returns the instruction previously created under
// (tenant, idempotency_key), if any.
func FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, idempotencyKey string) (*orchdomain.PaymentInstruction, error) {
	var row instructionRow
	err := tx.WithContext(ctx).Raw(
		`SELECT `+instructionColumns+` FROM payment_instruction WHERE tenant_id = ? AND idempotency_key = ?`,
		tenantID, idempotencyKey,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.InstructionID == uuid.Nil {
		return nil, nil
	}
	inst, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindByID locks and returns the instruction row.
func FindByID(ctx context.Context, tx *gorm.DB, tenantID, instructionID uuid.UUID) (*orchdomain.PaymentInstruction, error) {
	var row instructionRow
	err := tx.WithContext(ctx).Raw(
		`SELECT `+instructionColumns+` FROM payment_instruction WHERE tenant_id = ? AND instruction_id = ? FOR UPDATE`,
		tenantID, instructionID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.InstructionID == uuid.Nil {
		return nil, nil
	}
	inst, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindByProviderRequestID resolves the instruction a provider callback
// refers to via its most recent attempt.
func FindByProviderRequestID(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, providerRequestID string) (*orchdomain.PaymentInstruction, error) {
	var row instructionRow
	err := tx.WithContext(ctx).Raw(
		`SELECT `+instructionColumnsPrefixed("pi")+`
		 FROM payment_attempt pa
		 JOIN payment_instruction pi ON pi.instruction_id = pa.instruction_id
		 WHERE pa.provider_request_id = ? AND pi.tenant_id = ?
		 ORDER BY pa.submitted_at DESC LIMIT 1`,
		providerRequestID, tenantID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.InstructionID == uuid.Nil {
		return nil, nil
	}
	inst, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func instructionColumnsPrefixed(alias string) string {
	cols := []string{
		"instruction_id", "tenant_id", "legal_entity_id", "purpose", "direction", "amount_minor",
		"currency", "payee_type", "payee_ref_id", "detail_json", "source_type", "source_id",
		"status", "created_at", "idempotency_key",
	}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

// InsertInstruction creates a new instruction in the draft state.
func InsertInstruction(ctx context.Context, tx *gorm.DB, inst orchdomain.PaymentInstruction) error {
	detailJSON, err := json.Marshal(inst.Detail)
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO payment_instruction (
			instruction_id, tenant_id, legal_entity_id, purpose, direction, amount_minor, currency,
			payee_type, payee_ref_id, detail_json, source_type, source_id, status, created_at, idempotency_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, idempotency_key) DO NOTHING`,
		inst.InstructionID, inst.TenantID, inst.LegalEntityID, string(inst.Purpose), inst.Direction,
		inst.Amount.Minor, inst.Amount.Currency, inst.PayeeType, inst.PayeeRefID, detailJSON,
		inst.SourceType, inst.SourceID, string(inst.Status), inst.CreatedAt, inst.IdempotencyKey,
	).Error
}

// UpdateInstructionStatus transitions the instruction, guarded by its
// current status, so concurrent writers cannot race past each other.
func UpdateInstructionStatus(ctx context.Context, tx *gorm.DB, tenantID, instructionID uuid.UUID, from, to orchdomain.Status) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE payment_instruction SET status = ? WHERE tenant_id = ? AND instruction_id = ? AND status = ?`,
		string(to), tenantID, instructionID, string(from),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindActiveAttempt returns the most recent attempt still in flight
// (submitted or unknown), so Submit can reuse it instead of starting a new
// one.
func FindActiveAttempt(ctx context.Context, tx *gorm.DB, instructionID uuid.UUID) (*orchdomain.PaymentAttempt, error) {
	var row struct {
		AttemptID         uuid.UUID
		TenantID          uuid.UUID
		InstructionID     uuid.UUID
		ProviderName      string
		ProviderRequestID string
		AttemptNo         int
		Status            string
		SubmittedAt       time.Time
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT attempt_id, tenant_id, instruction_id, provider_name, provider_request_id, attempt_no, status, submitted_at
		 FROM payment_attempt
		 WHERE instruction_id = ? AND status IN ('submitted', 'unknown')
		 ORDER BY attempt_no DESC LIMIT 1`,
		instructionID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.AttemptID == uuid.Nil {
		return nil, nil
	}
	return &orchdomain.PaymentAttempt{
		AttemptID:         row.AttemptID,
		TenantID:          row.TenantID,
		InstructionID:     row.InstructionID,
		ProviderName:      row.ProviderName,
		ProviderRequestID: row.ProviderRequestID,
		AttemptNo:         row.AttemptNo,
		Status:            row.Status,
		SubmittedAt:       row.SubmittedAt,
	}, nil
}

// NextAttemptNo returns 1 + the highest attempt_no recorded for instructionID.
func NextAttemptNo(ctx context.Context, tx *gorm.DB, instructionID uuid.UUID) (int, error) {
	var max int
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(attempt_no), 0) FROM payment_attempt WHERE instruction_id = ?`,
		instructionID,
	).Scan(&max).Error
	return max + 1, err
}

// InsertAttempt records a submission attempt.
func InsertAttempt(ctx context.Context, tx *gorm.DB, a orchdomain.PaymentAttempt) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO payment_attempt (
			attempt_id, tenant_id, instruction_id, provider_name, provider_request_id, attempt_no,
			status, submitted_at, response_payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, provider_request_id) WHERE provider_request_id <> '' DO NOTHING`,
		a.AttemptID, a.TenantID, a.InstructionID, a.ProviderName, a.ProviderRequestID, a.AttemptNo,
		a.Status, a.SubmittedAt, payloadcodec.Encode(a.ResponsePayload),
	).Error
}
