// Package rls applies the per-tenant Postgres row-level-security session
// variable so that tenant isolation holds even if a query forgets a WHERE
// tenant_id = ? clause.
package rls

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WithTenant sets app.current_tenant_id for the lifetime of tx. Every table
// in the migrations carries an RLS policy keyed on that setting.
func WithTenant(tx *gorm.DB, tenantID uuid.UUID) error {
	return tx.Exec("SET LOCAL app.current_tenant_id = ?", tenantID.String()).Error
}
