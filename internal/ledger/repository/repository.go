// Package repository holds the ledger's raw-SQL accessors. Postings and
// reservations carry invariants (balance, idempotency, TTL expiry) a
// generic CRUD store can't express, so each query is hand-written here
// rather than routed through a generic CRUD store.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
	"github.com/smallbiznis/pspcore/internal/money"
	"gorm.io/gorm"
)

// FindAccount returns the account for (tenant, legal entity, type, currency), if any.
func FindAccount(ctx context.Context, tx *gorm.DB, tenantID, legalEntityID uuid.UUID, accountType ledgerdomain.AccountType, currency string) (*ledgerdomain.LedgerAccount, error) {
	var row struct {
		AccountID     uuid.UUID
		TenantID      uuid.UUID
		LegalEntityID uuid.UUID
		AccountType   string
		Currency      string
		Active        bool
		CreatedAt     time.Time
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT account_id, tenant_id, legal_entity_id, account_type, currency, active, created_at
		 FROM ledger_account
		 WHERE tenant_id = ? AND legal_entity_id = ? AND account_type = ? AND currency = ?`,
		tenantID, legalEntityID, string(accountType), currency,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.AccountID == uuid.Nil {
		return nil, nil
	}
	return &ledgerdomain.LedgerAccount{
		AccountID:     row.AccountID,
		TenantID:      row.TenantID,
		LegalEntityID: row.LegalEntityID,
		AccountType:   ledgerdomain.AccountType(row.AccountType),
		Currency:      row.Currency,
		Active:        row.Active,
		CreatedAt:     row.CreatedAt,
	}, nil
}

// InsertAccount creates the account row. Concurrent first-use races are
// resolved with ON CONFLICT DO NOTHING; the caller re-reads on conflict.
func InsertAccount(ctx context.Context, tx *gorm.DB, a ledgerdomain.LedgerAccount) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_account (account_id, tenant_id, legal_entity_id, account_type, currency, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, legal_entity_id, account_type, currency) DO NOTHING`,
		a.AccountID, a.TenantID, a.LegalEntityID, string(a.AccountType), a.Currency, a.Active, a.CreatedAt,
	).Error
}

// FindPostingByIdempotencyKey returns the entries of a prior posting, if one
// was already recorded under (tenant, idempotency_key).
func FindPostingByIdempotencyKey(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, idempotencyKey string) ([]ledgerdomain.LedgerEntry, error) {
	var rows []struct {
		EntryID        uuid.UUID
		TenantID       uuid.UUID
		AccountID      uuid.UUID
		Direction      string
		AmountMinor    int64
		Currency       string
		PostedAt       time.Time
		SourceType     string
		SourceID       uuid.UUID
		CorrelationID  uuid.UUID
		IdempotencyKey string
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT entry_id, tenant_id, account_id, direction, amount_minor, currency, posted_at,
		        source_type, source_id, correlation_id, idempotency_key
		 FROM ledger_entry
		 WHERE tenant_id = ? AND idempotency_key = ?
		 ORDER BY posted_at ASC`,
		tenantID, idempotencyKey,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	entries := make([]ledgerdomain.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, ledgerdomain.LedgerEntry{
			EntryID:        r.EntryID,
			TenantID:       r.TenantID,
			AccountID:      r.AccountID,
			Direction:      ledgerdomain.EntryDirection(r.Direction),
			Amount:         money.Amount{Minor: r.AmountMinor, Currency: r.Currency},
			PostedAt:       r.PostedAt,
			SourceType:     r.SourceType,
			SourceID:       r.SourceID,
			CorrelationID:  r.CorrelationID,
			IdempotencyKey: r.IdempotencyKey,
		})
	}
	return entries, nil
}

// InsertEntry writes one immutable ledger entry line.
func InsertEntry(ctx context.Context, tx *gorm.DB, e ledgerdomain.LedgerEntry) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entry (
			entry_id, tenant_id, account_id, direction, amount_minor, currency, posted_at,
			source_type, source_id, correlation_id, idempotency_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.TenantID, e.AccountID, string(e.Direction), e.Amount.Minor, e.Amount.Currency, e.PostedAt,
		e.SourceType, e.SourceID, e.CorrelationID, e.IdempotencyKey,
	).Error
}

// SumAccount returns the posted debit/credit totals for an account, in minor
// units, as of the current transaction snapshot.
func SumAccount(ctx context.Context, tx *gorm.DB, tenantID, accountID uuid.UUID) (debits, credits int64, err error) {
	var row struct {
		Debits  int64
		Credits int64
	}
	err = tx.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN direction = 'debit' THEN amount_minor ELSE 0 END), 0) AS debits,
			COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount_minor ELSE 0 END), 0) AS credits
		 FROM ledger_entry
		 WHERE tenant_id = ? AND account_id = ?`,
		tenantID, accountID,
	).Scan(&row).Error
	return row.Debits, row.Credits, err
}

// LockAccountForUpdate takes a row-level lock on the account row so
// concurrent posters serialize on it. Nothing in the module calls it;
// GetBalance reads without it.
func LockAccountForUpdate(ctx context.Context, tx *gorm.DB, tenantID, accountID uuid.UUID) error {
	return tx.WithContext(ctx).Exec(
		`SELECT account_id FROM ledger_account WHERE tenant_id = ? AND account_id = ? FOR UPDATE`,
		tenantID, accountID,
	).Error
}

// SumHeldReservations returns the total amount of reservations currently
// held against the (tenant, legal entity).
func SumHeldReservations(ctx context.Context, tx *gorm.DB, tenantID, legalEntityID uuid.UUID) (int64, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_minor), 0) FROM reservation
		 WHERE tenant_id = ? AND legal_entity_id = ? AND status = 'held'`,
		tenantID, legalEntityID,
	).Scan(&total).Error
	return total, err
}

// InsertReservation writes a new reservation row in the held state.
func InsertReservation(ctx context.Context, tx *gorm.DB, r ledgerdomain.Reservation) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO reservation (
			reservation_id, tenant_id, legal_entity_id, reserve_type, amount_minor, currency,
			status, source_type, source_id, ttl_seconds, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ReservationID, r.TenantID, r.LegalEntityID, r.ReserveType, r.Amount.Minor, r.Amount.Currency,
		string(r.Status), r.SourceType, r.SourceID, int64(r.TTL.Seconds()), r.CreatedAt, r.ExpiresAt,
	).Error
}

// FindReservationForUpdate locks and returns the reservation row.
func FindReservationForUpdate(ctx context.Context, tx *gorm.DB, tenantID, reservationID uuid.UUID) (*ledgerdomain.Reservation, error) {
	var row struct {
		ReservationID uuid.UUID
		TenantID      uuid.UUID
		LegalEntityID uuid.UUID
		ReserveType   string
		AmountMinor   int64
		Currency      string
		Status        string
		SourceType    string
		SourceID      uuid.UUID
		TTLSeconds    int64
		CreatedAt     time.Time
		ExpiresAt     time.Time
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT reservation_id, tenant_id, legal_entity_id, reserve_type, amount_minor, currency,
		        status, source_type, source_id, ttl_seconds, created_at, expires_at
		 FROM reservation WHERE tenant_id = ? AND reservation_id = ? FOR UPDATE`,
		tenantID, reservationID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ReservationID == uuid.Nil {
		return nil, nil
	}
	return &ledgerdomain.Reservation{
		ReservationID: row.ReservationID,
		TenantID:      row.TenantID,
		LegalEntityID: row.LegalEntityID,
		ReserveType:   row.ReserveType,
		Amount:        money.Amount{Minor: row.AmountMinor, Currency: row.Currency},
		Status:        ledgerdomain.ReservationStatus(row.Status),
		SourceType:    row.SourceType,
		SourceID:      row.SourceID,
		TTL:           time.Duration(row.TTLSeconds) * time.Second,
		CreatedAt:     row.CreatedAt,
		ExpiresAt:     row.ExpiresAt,
	}, nil
}

// UpdateReservationStatus transitions a reservation, guarded by its current status.
func UpdateReservationStatus(ctx context.Context, tx *gorm.DB, tenantID, reservationID uuid.UUID, from, to ledgerdomain.ReservationStatus) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE reservation SET status = ? WHERE tenant_id = ? AND reservation_id = ? AND status = ?`,
		string(to), tenantID, reservationID, string(from),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
