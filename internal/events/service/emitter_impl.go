package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/pspcore/internal/clock"
	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
	"github.com/smallbiznis/pspcore/pkg/eventid"
)

// EmitterParams are the emitter's fx-injected dependencies.
type EmitterParams struct {
	fx.In

	Store  eventsdomain.Store
	Clock  clock.Clock
	Log    *zap.Logger
	Notify *Notifier `optional:"true"`
}

// Emitter persists every event through Store before fanning it out, so a
// handler never observes an event the store rejected.
type Emitter struct {
	store  eventsdomain.Store
	clock  clock.Clock
	log    *zap.Logger
	notify *Notifier

	mu       sync.RWMutex
	handlers []eventsdomain.Handler
}

// NewEmitter builds the Emitter.
func NewEmitter(p EmitterParams) eventsdomain.Emitter {
	return &Emitter{store: p.Store, clock: p.Clock, log: p.Log.Named("events.emitter"), notify: p.Notify}
}

func (e *Emitter) Subscribe(handler eventsdomain.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// Emit persists event then calls every subscribed handler in registration
// order. A handler error is logged only — it is not collected or returned —
// and never stops a subsequent handler from running or fails the emit
// itself; the store write is what the caller can rely on having happened.
func (e *Emitter) Emit(ctx context.Context, tenantID, correlationID uuid.UUID, causationID *ulid.ULID, payload eventsdomain.Payload) (eventsdomain.DomainEvent, error) {
	event := eventsdomain.DomainEvent{
		EventID:       eventid.New(e.clock.Now()),
		TenantID:      tenantID,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Kind:          payload.Kind(),
		OccurredAt:    e.clock.Now(),
		Payload:       payload,
	}
	if err := e.store.Append(ctx, event); err != nil {
		return eventsdomain.DomainEvent{}, err
	}

	e.mu.RLock()
	handlers := make([]eventsdomain.Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			e.log.Warn("event handler failed",
				zap.String("event_id", event.EventID.String()),
				zap.String("kind", string(event.Kind)),
				zap.Error(err),
			)
		}
	}

	if e.notify != nil {
		e.notify.Publish(ctx, tenantID, event.EventID)
	}

	return event, nil
}
