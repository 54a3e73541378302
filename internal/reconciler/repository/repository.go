// Package repository holds settlement_event and settlement_link raw-SQL
// accessors, plus the candidate search the amount+date and heuristic match
// strategies run against payment_instruction.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/pspcore/internal/money"
	"github.com/smallbiznis/pspcore/internal/payloadcodec"
	reconcilerdomain "github.com/smallbiznis/pspcore/internal/reconciler/domain"
	"gorm.io/gorm"
)

type eventRow struct {
	SettlementEventID uuid.UUID
	TenantID          uuid.UUID
	BankAccountID     uuid.UUID
	ProviderName      string
	Direction         string
	AmountMinor       int64
	Currency          string
	ExternalTraceID   string
	EffectiveDate     time.Time
	Status            string
	ReturnCode        string
	ReturnReason      string
	RawPayload        []byte
	CreatedAt         time.Time
}

const eventColumns = `settlement_event_id, tenant_id, bank_account_id, provider_name, direction, amount_minor,
	currency, external_trace_id, effective_date, status, return_code, return_reason, raw_payload, created_at`

func (r eventRow) toDomain() reconcilerdomain.SettlementEvent {
	rawPayload, _ := payloadcodec.Decode(r.RawPayload)
	return reconcilerdomain.SettlementEvent{
		SettlementEventID: r.SettlementEventID,
		TenantID:          r.TenantID,
		BankAccountID:     r.BankAccountID,
		ProviderName:      r.ProviderName,
		Direction:         r.Direction,
		Amount:            money.Amount{Minor: r.AmountMinor, Currency: r.Currency},
		ExternalTraceID:   r.ExternalTraceID,
		EffectiveDate:     r.EffectiveDate,
		Status:            reconcilerdomain.SettlementStatus(r.Status),
		ReturnCode:        r.ReturnCode,
		ReturnReason:      r.ReturnReason,
		RawPayload:        rawPayload,
		CreatedAt:         r.CreatedAt,
	}
}

// UpsertSettlementEvent inserts evt if (tenant, provider, external_trace_id)
// hasn't been seen, or returns the previously stored row otherwise — a
// duplicate feed delivery is counted once per §4.4 step 1.
func UpsertSettlementEvent(ctx context.Context, tx *gorm.DB, evt reconcilerdomain.SettlementEvent) (reconcilerdomain.SettlementEvent, bool, error) {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO settlement_event (
			settlement_event_id, tenant_id, bank_account_id, provider_name, direction, amount_minor, currency,
			external_trace_id, effective_date, status, return_code, return_reason, raw_payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, provider_name, external_trace_id) DO NOTHING`,
		evt.SettlementEventID, evt.TenantID, evt.BankAccountID, evt.ProviderName, evt.Direction,
		evt.Amount.Minor, evt.Amount.Currency, evt.ExternalTraceID, evt.EffectiveDate,
		string(evt.Status), evt.ReturnCode, evt.ReturnReason, payloadcodec.Encode(evt.RawPayload), evt.CreatedAt,
	)
	if result.Error != nil {
		return reconcilerdomain.SettlementEvent{}, false, result.Error
	}
	if result.RowsAffected > 0 {
		return evt, true, nil
	}

	var row eventRow
	err := tx.WithContext(ctx).Raw(
		`SELECT `+eventColumns+` FROM settlement_event WHERE tenant_id = ? AND provider_name = ? AND external_trace_id = ?`,
		evt.TenantID, evt.ProviderName, evt.ExternalTraceID,
	).Scan(&row).Error
	if err != nil {
		return reconcilerdomain.SettlementEvent{}, false, err
	}
	return row.toDomain(), false, nil
}

// MarkEventStatus records the match (or terminal return) outcome.
func MarkEventStatus(ctx context.Context, tx *gorm.DB, tenantID, settlementEventID uuid.UUID, status reconcilerdomain.SettlementStatus) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE settlement_event SET status = ? WHERE tenant_id = ? AND settlement_event_id = ?`,
		string(status), tenantID, settlementEventID,
	).Error
}

// InsertLink records a SettlementEvent -> PaymentInstruction match.
func InsertLink(ctx context.Context, tx *gorm.DB, link reconcilerdomain.SettlementLink) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO settlement_link (
			settlement_link_id, tenant_id, settlement_event_id, instruction_id, strategy, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.SettlementLinkID, link.TenantID, link.SettlementEventID, link.InstructionID,
		string(link.Strategy), link.Confidence, link.CreatedAt,
	).Error
}

// candidateRow is the shape of an unlinked instruction considered for the
// amount+date and heuristic match strategies.
type candidateRow struct {
	InstructionID uuid.UUID
	CreatedAt     time.Time
}

// FindCandidatesByAmount returns submitted/accepted instructions matching
// amount, currency, and direction, created within [windowStart, windowEnd),
// ordered by proximity to the settlement's effective date is left to the
// caller (rows come back oldest first).
func FindCandidatesByAmount(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, amountMinor int64, currency, direction string, windowStart, windowEnd time.Time) ([]uuid.UUID, error) {
	var rows []candidateRow
	err := tx.WithContext(ctx).Raw(
		`SELECT instruction_id, created_at FROM payment_instruction
		 WHERE tenant_id = ? AND amount_minor = ? AND currency = ? AND direction = ?
		   AND status IN ('submitted', 'accepted')
		   AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC`,
		tenantID, amountMinor, currency, direction, windowStart, windowEnd,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.InstructionID)
	}
	return ids, nil
}
