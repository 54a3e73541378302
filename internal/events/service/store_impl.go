// Package service is the gorm-transactional Store plus the in-process
// synchronous-fanout Emitter, with an optional lib/pq LISTEN/NOTIFY
// side-channel so other processes learn a tenant has new events without
// polling domain_event.
package service

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
	"github.com/smallbiznis/pspcore/internal/events/repository"
)

// StoreParams are the store's fx-injected dependencies.
type StoreParams struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// Store is the gorm-transactional eventsdomain.Store implementation.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewStore builds the event Store.
func NewStore(p StoreParams) eventsdomain.Store {
	return &Store{db: p.DB, log: p.Log.Named("events.store")}
}

func (s *Store) Append(ctx context.Context, event eventsdomain.DomainEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.Append(ctx, tx, event)
	})
}

func (s *Store) LoadBy(ctx context.Context, tenantID uuid.UUID, filter eventsdomain.Filter) ([]eventsdomain.DomainEvent, error) {
	var events []eventsdomain.DomainEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		events, err = repository.LoadBy(ctx, tx, tenantID, filter)
		return err
	})
	return events, err
}

func (s *Store) Replay(ctx context.Context, tenantID uuid.UUID, fromEventID ulid.ULID) ([]eventsdomain.DomainEvent, error) {
	var events []eventsdomain.DomainEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		events, err = repository.Replay(ctx, tx, tenantID, fromEventID)
		return err
	})
	return events, err
}
