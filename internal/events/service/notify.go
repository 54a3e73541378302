package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/pspcore/internal/config"
)

const notifyChannel = "domain_events"

// Notifier publishes a pg_notify on every Emit so other processes can wake
// up a replay consumer instead of polling domain_event. Nil-safe: on
// sqlite (tests, or a deployment without a Postgres backend) NewNotifier
// returns nil and Emitter.Emit simply skips the publish.
type Notifier struct {
	db *gorm.DB
}

// NewNotifier builds a Notifier, or returns nil if cfg isn't configured for
// Postgres.
func NewNotifier(cfg config.Config, db *gorm.DB) *Notifier {
	if cfg.DBType != "postgres" {
		return nil
	}
	return &Notifier{db: db}
}

// Publish fires pg_notify(domain_events, "<tenant_id>:<event_id>"). The
// payload is intentionally small — listeners re-read the full event from
// domain_event rather than trust NOTIFY's payload as the source of truth.
func (n *Notifier) Publish(ctx context.Context, tenantID uuid.UUID, eventID ulid.ULID) {
	if n == nil {
		return
	}
	payload := tenantID.String() + ":" + eventID.String()
	_ = n.db.WithContext(ctx).Exec(`SELECT pg_notify(?, ?)`, notifyChannel, payload).Error
}

// Listener subscribes to the NOTIFY channel Notifier publishes on, for a
// process that wants to react to another process's events (e.g. a replay
// consumer) rather than polling domain_event on a timer.
type Listener struct {
	pq  *pq.Listener
	log *zap.Logger
}

// NewListener opens a dedicated LISTEN connection, or returns nil if cfg
// isn't configured for Postgres.
func NewListener(cfg config.Config, log *zap.Logger) (*Listener, error) {
	if cfg.DBType != "postgres" {
		return nil, nil
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("events listener connection event", zap.Error(err))
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		return nil, err
	}
	return &Listener{pq: listener, log: log.Named("events.listener")}, nil
}

// Notifications is the channel of raw NOTIFY payloads ("<tenant_id>:<event_id>").
func (l *Listener) Notifications() <-chan *pq.Notification {
	if l == nil {
		ch := make(chan *pq.Notification)
		close(ch)
		return ch
	}
	return l.pq.Notify
}

// Close releases the LISTEN connection.
func (l *Listener) Close() error {
	if l == nil {
		return nil
	}
	return l.pq.Close()
}
