package tenantctx

import (
	"context"

	"github.com/google/uuid"
)

type keyType string

const tenantIDKey keyType = "tenant_id"

// WithTenant returns a context carrying the given tenant id.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantID returns the tenant id carried by ctx, if any.
func TenantID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantIDKey).(uuid.UUID)
	return id, ok
}
