package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pspcore/internal/clock"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
	"github.com/smallbiznis/pspcore/internal/ledger/repository"
	"github.com/smallbiznis/pspcore/internal/money"
	obsmetrics "github.com/smallbiznis/pspcore/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// serializableTx is passed to every posting transaction; §4.1 requires
// post to run inside a single serializable database transaction.
var serializableTx = &sql.TxOptions{Isolation: sql.LevelSerializable}

// Params are the service's fx-injected dependencies.
type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Redis      *redis.Client       `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service is the gorm-transactional ledgerdomain.Service implementation.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	idemCache  *idempotencyCache
	obsMetrics *obsmetrics.Metrics
}

// NewService builds the ledger Service.
func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		clock:      p.Clock,
		idemCache:  newIdempotencyCache(p.Redis),
		obsMetrics: p.ObsMetrics,
	}
}

// Post runs the posting inside a single serializable transaction: look up
// the idempotency key, insert entries if absent, return the prior result if
// present.
func (s *Service) Post(ctx context.Context, tenantID, correlationID uuid.UUID, idempotencyKey string, entries []ledgerdomain.LedgerEntry) (ledgerdomain.PostResult, error) {
	if len(entries) < 2 {
		return ledgerdomain.PostResult{}, ledgerdomain.ErrEmptyPosting
	}
	for _, e := range entries {
		if e.TenantID != tenantID {
			return ledgerdomain.PostResult{}, ledgerdomain.ErrCrossTenantPosting
		}
		if err := e.Amount.Validate(); err != nil {
			return ledgerdomain.PostResult{}, ledgerdomain.ErrInvalidEntryAmount
		}
	}
	if err := validateBalanced(entries); err != nil {
		return ledgerdomain.PostResult{}, err
	}

	if cached, ok := s.idemCache.get(ctx, tenantID, idempotencyKey); ok && len(cached) > 0 {
		return ledgerdomain.PostResult{CorrelationID: cached[0].CorrelationID, Entries: cached, Replayed: true}, nil
	}

	var result ledgerdomain.PostResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repository.FindPostingByIdempotencyKey(ctx, tx, tenantID, idempotencyKey)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = ledgerdomain.PostResult{CorrelationID: existing[0].CorrelationID, Entries: existing, Replayed: true}
			return nil
		}

		now := s.clock.Now()
		posted := make([]ledgerdomain.LedgerEntry, 0, len(entries))
		for _, e := range entries {
			e.EntryID = uuid.New()
			e.CorrelationID = correlationID
			e.IdempotencyKey = idempotencyKey
			e.PostedAt = now
			if err := repository.InsertEntry(ctx, tx, e); err != nil {
				return err
			}
			posted = append(posted, e)
		}
		result = ledgerdomain.PostResult{CorrelationID: correlationID, Entries: posted, Replayed: false}
		return nil
	}, serializableTx)
	if err != nil {
		return ledgerdomain.PostResult{}, err
	}

	if !result.Replayed && s.obsMetrics != nil {
		for _, e := range result.Entries {
			s.obsMetrics.RecordLedgerPosting(ctx, string(e.Direction), e.SourceType)
		}
	}
	s.idemCache.set(ctx, tenantID, idempotencyKey, result.Entries)
	return result, nil
}

// GetBalance derives posted/reserved/available for an account at read time.
func (s *Service) GetBalance(ctx context.Context, tenantID, accountID uuid.UUID) (ledgerdomain.Balance, error) {
	var balance ledgerdomain.Balance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		debits, credits, err := repository.SumAccount(ctx, tx, tenantID, accountID)
		if err != nil {
			return err
		}
		posted := credits - debits

		acc, err := accountByID(ctx, tx, tenantID, accountID)
		if err != nil {
			return err
		}
		if acc == nil {
			return ledgerdomain.ErrAccountNotFound
		}

		reserved, err := repository.SumHeldReservations(ctx, tx, tenantID, acc.LegalEntityID)
		if err != nil {
			return err
		}

		balance = ledgerdomain.Balance{
			AccountID: accountID,
			Currency:  acc.Currency,
			Posted:    posted,
			Reserved:  reserved,
			Available: posted - reserved,
		}
		return nil
	})
	return balance, err
}

// GetOrCreateAccount returns the account for the (tenant, legal entity,
// type, currency) tuple, creating it on first use.
func (s *Service) GetOrCreateAccount(ctx context.Context, tenantID, legalEntityID uuid.UUID, accountType ledgerdomain.AccountType, currency string) (ledgerdomain.LedgerAccount, error) {
	var account ledgerdomain.LedgerAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repository.FindAccount(ctx, tx, tenantID, legalEntityID, accountType, currency)
		if err != nil {
			return err
		}
		if existing != nil {
			account = *existing
			return nil
		}

		account = ledgerdomain.LedgerAccount{
			AccountID:     uuid.New(),
			TenantID:      tenantID,
			LegalEntityID: legalEntityID,
			AccountType:   accountType,
			Currency:      currency,
			Active:        true,
			CreatedAt:     s.clock.Now(),
		}
		if err := repository.InsertAccount(ctx, tx, account); err != nil {
			return err
		}

		reread, err := repository.FindAccount(ctx, tx, tenantID, legalEntityID, accountType, currency)
		if err != nil {
			return err
		}
		if reread != nil {
			account = *reread
		}
		return nil
	})
	return account, err
}

// CreateReservation holds funds between commit and pay.
func (s *Service) CreateReservation(ctx context.Context, tenantID, legalEntityID uuid.UUID, reserveType string, amount money.Amount, sourceType string, sourceID uuid.UUID, ttl time.Duration) (ledgerdomain.Reservation, error) {
	if err := amount.Validate(); err != nil {
		return ledgerdomain.Reservation{}, ledgerdomain.ErrInvalidEntryAmount
	}
	now := s.clock.Now()
	reservation := ledgerdomain.Reservation{
		ReservationID: uuid.New(),
		TenantID:      tenantID,
		LegalEntityID: legalEntityID,
		ReserveType:   reserveType,
		Amount:        amount,
		Status:        ledgerdomain.ReservationHeld,
		SourceType:    sourceType,
		SourceID:      sourceID,
		CreatedAt:     now,
		TTL:           ttl,
		ExpiresAt:     now.Add(ttl),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.InsertReservation(ctx, tx, reservation)
	})
	return reservation, err
}

// ReleaseReservation transitions a held reservation to consumed or released.
func (s *Service) ReleaseReservation(ctx context.Context, tenantID, reservationID uuid.UUID, consumed bool) error {
	target := ledgerdomain.ReservationReleased
	if consumed {
		target = ledgerdomain.ReservationConsumed
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := repository.FindReservationForUpdate(ctx, tx, tenantID, reservationID)
		if err != nil {
			return err
		}
		if reservation == nil {
			return ledgerdomain.ErrReservationNotFound
		}
		if reservation.Status != ledgerdomain.ReservationHeld {
			return ledgerdomain.ErrReservationClosed
		}
		ok, err := repository.UpdateReservationStatus(ctx, tx, tenantID, reservationID, ledgerdomain.ReservationHeld, target)
		if err != nil {
			return err
		}
		if !ok {
			return ledgerdomain.ErrReservationClosed
		}
		return nil
	})
}

func accountByID(ctx context.Context, tx *gorm.DB, tenantID, accountID uuid.UUID) (*ledgerdomain.LedgerAccount, error) {
	var row struct {
		AccountID     uuid.UUID
		TenantID      uuid.UUID
		LegalEntityID uuid.UUID
		AccountType   string
		Currency      string
		Active        bool
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT account_id, tenant_id, legal_entity_id, account_type, currency, active
		 FROM ledger_account WHERE tenant_id = ? AND account_id = ?`,
		tenantID, accountID,
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
	}, nil
}

func validateBalanced(entries []ledgerdomain.LedgerEntry) error {
	totals := map[string]int64{}
	for _, e := range entries {
		switch e.Direction {
		case ledgerdomain.Debit:
			totals[e.Amount.Currency] += e.Amount.Minor
		case ledgerdomain.Credit:
			totals[e.Amount.Currency] -= e.Amount.Minor
		default:
			return ledgerdomain.ErrUnbalancedPosting
		}
	}
	for _, net := range totals {
		if net != 0 {
			return ledgerdomain.ErrUnbalancedPosting
		}
	}
	return nil
}
