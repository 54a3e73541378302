package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	eventsdomain "github.com/smallbiznis/pspcore/internal/events/domain"
	"gorm.io/gorm"
)

// CreateSubscription registers an external consumer of tenantID's events of
// the given kind.
func CreateSubscription(ctx context.Context, tx *gorm.DB, sub eventsdomain.EventSubscription) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO event_subscription (subscription_id, tenant_id, kind, handler_name, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.SubscriptionID, sub.TenantID, string(sub.Kind), sub.HandlerName, sub.Active, sub.CreatedAt,
	).Error
}

// ListActiveSubscriptions returns tenantID's active subscriptions.
func ListActiveSubscriptions(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]eventsdomain.EventSubscription, error) {
	var rows []struct {
		SubscriptionID uuid.UUID
		TenantID       uuid.UUID
		Kind           string
		HandlerName    string
		Active         bool
		CreatedAt      time.Time
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT subscription_id, tenant_id, kind, handler_name, active, created_at
		 FROM event_subscription WHERE tenant_id = ? AND active = true`,
		tenantID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]eventsdomain.EventSubscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, eventsdomain.EventSubscription{
			SubscriptionID: r.SubscriptionID,
			TenantID:       r.TenantID,
			Kind:           eventsdomain.Kind(r.Kind),
			HandlerName:    r.HandlerName,
			Active:         r.Active,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}

// DeactivateSubscription soft-deletes a subscription; the row is never
// physically removed, keeping the registry's own history auditable.
func DeactivateSubscription(ctx context.Context, tx *gorm.DB, tenantID, subscriptionID uuid.UUID) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE event_subscription SET active = false WHERE tenant_id = ? AND subscription_id = ?`,
		tenantID, subscriptionID,
	).Error
}
