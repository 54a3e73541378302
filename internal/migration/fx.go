package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module applies schema migrations on startup before any repository can
// be used. pspcore has no tenant/org bootstrap step: tenants are created
// by the upstream payroll platform, not seeded here.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
