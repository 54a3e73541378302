// Package repository holds the domain_event and event_subscription raw-SQL
// accessors. Payload is polymorphic, so it is serialized to JSON alongside
// its Kind discriminant rather than routed through a generic CRUD store.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func encodePayload(p eventsdomain.Payload) (datatypes.JSON, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodePayload(kind eventsdomain.Kind, raw datatypes.JSON) (eventsdomain.Payload, error) {
	var (
		payload eventsdomain.Payload
		err     error
	)
	switch kind {
	case eventsdomain.KindFundingRequested:
		var p eventsdomain.FundingRequested
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindFundingApproved:
		var p eventsdomain.FundingApproved
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindFundingBlocked:
		var p eventsdomain.FundingBlocked
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindFundingInsufficientFunds:
		var p eventsdomain.FundingInsufficientFunds
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindPaymentInstructionCreated:
		var p eventsdomain.PaymentInstructionCreated
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindPaymentSubmitted:
		var p eventsdomain.PaymentSubmitted
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindPaymentFailed:
		var p eventsdomain.PaymentFailed
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindPaymentSettled:
		var p eventsdomain.PaymentSettled
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindPaymentReturned:
		var p eventsdomain.PaymentReturned
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindReconciliationStarted:
		var p eventsdomain.ReconciliationStarted
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindReconciliationCompleted:
		var p eventsdomain.ReconciliationCompleted
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindSettlementReceived:
		var p eventsdomain.SettlementReceived
		err = json.Unmarshal(raw, &p)
		payload = p
	case eventsdomain.KindLiabilityClassified:
		var p eventsdomain.LiabilityClassified
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

type eventRow struct {
	EventID       string
	TenantID      uuid.UUID
	CorrelationID uuid.UUID
	CausationID   string
	Kind          string
	OccurredAt    time.Time
	PayloadJSON   datatypes.JSON
}

const eventColumns = `event_id, tenant_id, correlation_id, causation_id, kind, occurred_at, payload_json`

func (r eventRow) toDomain() (eventsdomain.DomainEvent, error) {
	eventID, err := ulid.ParseStrict(r.EventID)
	if err != nil {
		return eventsdomain.DomainEvent{}, err
	}
	payload, err := decodePayload(eventsdomain.Kind(r.Kind), r.PayloadJSON)
	if err != nil {
		return eventsdomain.DomainEvent{}, err
	}
	var causationID *ulid.ULID
	if r.CausationID != "" {
		id, err := ulid.ParseStrict(r.CausationID)
		if err != nil {
			return eventsdomain.DomainEvent{}, err
		}
		causationID = &id
	}
	return eventsdomain.DomainEvent{
		EventID:       eventID,
		TenantID:      r.TenantID,
		CorrelationID: r.CorrelationID,
		CausationID:   causationID,
		Kind:          eventsdomain.Kind(r.Kind),
		OccurredAt:    r.OccurredAt,
		Payload:       payload,
	}, nil
}

// Append writes event to the append-only domain_event table. Events are
// never updated or deleted once written.
func Append(ctx context.Context, tx *gorm.DB, event eventsdomain.DomainEvent) error {
	payloadJSON, err := encodePayload(event.Payload)
	if err != nil {
		return err
	}
	var causationID string
	if event.CausationID != nil {
		causationID = event.CausationID.String()
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO domain_event (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.EventID.String(), event.TenantID, event.CorrelationID, causationID,
		string(event.Kind), event.OccurredAt, payloadJSON,
	).Error
}

// LoadBy returns events for tenantID matching filter, oldest first.
func LoadBy(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, filter eventsdomain.Filter) ([]eventsdomain.DomainEvent, error) {
	q := tx.WithContext(ctx).Table("domain_event").Where("tenant_id = ?", tenantID)
	if filter.Kind != "" {
		q = q.Where("kind = ?", string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		q = q.Where("occurred_at >= ?", filter.Since)
	}
	q = q.Order("event_id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []eventRow
	if err := q.Select(eventColumns).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// Replay returns every event for tenantID from (and including) fromEventID
// onward, in insertion order — the event id's ULID ordering makes this a
// simple lexicographic range scan.
func Replay(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, fromEventID ulid.ULID) ([]eventsdomain.DomainEvent, error) {
	var rows []eventRow
	err := tx.WithContext(ctx).Raw(
		`SELECT `+eventColumns+` FROM domain_event WHERE tenant_id = ? AND event_id >= ? ORDER BY event_id ASC`,
		tenantID, fromEventID.String(),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func decodeRows(rows []eventRow) ([]eventsdomain.DomainEvent, error) {
	out := make([]eventsdomain.DomainEvent, 0, len(rows))
	for _, r := range rows {
		evt, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}
