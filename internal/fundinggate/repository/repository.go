// Package repository stores funding gate evaluation outcomes so a retried
// commit-gate or pay-gate call under the same idempotency key replays its
// prior result instead of re-evaluating policy against a possibly-changed
// balance.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	gatedomain "github.com/smallbiznis/pspcore/internal/fundinggate/domain"
	"github.com/smallbiznis/pspcore/internal/money"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record is the persisted shape of one gate evaluation.
type Record struct {
	TenantID    uuid.UUID
	PayRunID    uuid.UUID
	GateKind    string
	Passed      bool
	AvailMinor  int64
	ReqMinor    int64
	Currency    string
	ReasonsJSON datatypes.JSON
	EvaluatedAt time.Time
}

// FindByIdempotencyKey returns a prior evaluation recorded under (tenant,
// gate kind, idempotency key), if any.
func FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, gateKind, idempotencyKey string) (*gatedomain.GateResult, error) {
	var row struct {
		Found       bool
		Passed      bool
		AvailMinor  int64
		ReqMinor    int64
		Currency    string
		ReasonsJSON datatypes.JSON
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT TRUE AS found, passed, available_minor, required_minor, currency, reasons_json
		 FROM funding_gate_evaluation
		 WHERE tenant_id = ? AND gate_kind = ? AND idempotency_key = ?`,
		tenantID, gateKind, idempotencyKey,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if !row.Found {
		return nil, nil
	}

	var reasons []gatedomain.Reason
	if len(row.ReasonsJSON) > 0 {
		if err := json.Unmarshal(row.ReasonsJSON, &reasons); err != nil {
			return nil, err
		}
	}

	available := money.Amount{Minor: row.AvailMinor, Currency: row.Currency}
	required := money.Amount{Minor: row.ReqMinor, Currency: row.Currency}
	shortfall, _ := required.Sub(available)
	if shortfall.Negative() {
		shortfall = money.Amount{Currency: row.Currency}
	}
	return &gatedomain.GateResult{
		Passed:          row.Passed,
		AvailableAmount: available,
		RequiredAmount:  required,
		Shortfall:       shortfall,
		Reasons:         reasons,
	}, nil
}

// Insert records the evaluation outcome. A conflict on the unique
// (tenant_id, gate_kind, idempotency_key) key is left to the caller, who has
// already checked FindByIdempotencyKey inside the same transaction.
func Insert(ctx context.Context, tx *gorm.DB, tenantID, payRunID uuid.UUID, gateKind, idempotencyKey string, result gatedomain.GateResult, now time.Time) error {
	reasonsRaw, err := json.Marshal(result.Reasons)
	if err != nil {
		return err
	}
	reasonsJSON := datatypes.JSON(reasonsRaw)
	return tx.WithContext(ctx).Exec(
		`INSERT INTO funding_gate_evaluation (
			tenant_id, pay_run_id, gate_kind, idempotency_key, passed,
			available_minor, required_minor, currency, reasons_json, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, gate_kind, idempotency_key) DO NOTHING`,
		tenantID, payRunID, gateKind, idempotencyKey, result.Passed,
		result.AvailableAmount.Minor, result.RequiredAmount.Minor, result.AvailableAmount.Currency,
		reasonsJSON, now,
	).Error
}

// HeldReservationExists reports whether a held reservation sourced from
// payRunID exists, satisfying pay-gate check 2.
func HeldReservationExists(ctx context.Context, tx *gorm.DB, tenantID, payRunID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM reservation
		 WHERE tenant_id = ? AND source_id = ? AND status = 'held'`,
		tenantID, payRunID,
	).Scan(&count).Error
	return count > 0, err
}

// LatestApprovedCommitGate returns the most recent passed commit-gate
// evaluation for payRunID, consulted by EvaluatePayGate's approval check.
func LatestApprovedCommitGate(ctx context.Context, tx *gorm.DB, tenantID, payRunID uuid.UUID) (*gatedomain.GateResult, error) {
	var row struct {
		Passed      bool
		AvailMinor  int64
		ReqMinor    int64
		Currency    string
		ReasonsJSON datatypes.JSON
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT passed, available_minor, required_minor, currency, reasons_json
		 FROM funding_gate_evaluation
		 WHERE tenant_id = ? AND pay_run_id = ? AND gate_kind = 'commit' AND passed = true
		 ORDER BY evaluated_at DESC LIMIT 1`,
		tenantID, payRunID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Currency == "" {
		return nil, nil
	}
	var reasons []gatedomain.Reason
	if len(row.ReasonsJSON) > 0 {
		if err := json.Unmarshal(row.ReasonsJSON, &reasons); err != nil {
			return nil, err
		}
	}
	return &gatedomain.GateResult{
		Passed:          row.Passed,
		AvailableAmount: money.Amount{Minor: row.AvailMinor, Currency: row.Currency},
		RequiredAmount:  money.Amount{Minor: row.ReqMinor, Currency: row.Currency},
		Reasons:         reasons,
	}, nil
}
