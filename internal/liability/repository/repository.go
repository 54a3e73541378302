// Package repository holds the liability_event raw-SQL accessor.
package repository

import (
	"context"

	liabilitydomain "github.com/smallbiznis/pspcore/internal/liability/domain"
	"gorm.io/gorm"
)

// Insert records one liability event. Classification is immutable once
// written, so there is no update path.
func Insert(ctx context.Context, tx *gorm.DB, evt liabilitydomain.LiabilityEvent) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO liability_event (
			liability_event_id, tenant_id, instruction_id, rail, return_code, amount_minor, currency,
			error_origin, liability_party, recovery_path, determination_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.LiabilityEventID, evt.TenantID, evt.InstructionID, evt.Rail, evt.ReturnCode,
		evt.Amount.Minor, evt.Amount.Currency,
		evt.Classification.ErrorOrigin, evt.Classification.LiabilityParty, evt.Classification.RecoveryPath,
		evt.Classification.DeterminationReason, evt.CreatedAt,
	).Error
}
