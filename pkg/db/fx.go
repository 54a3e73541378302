package db

import (
	"context"
	"time"

	"github.com/smallbiznis/pspcore/internal/config"
	"github.com/smallbiznis/pspcore/internal/dbsupport"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

// Module provides the shared *gorm.DB: dialect selection from config,
// connection pool limits, zap-backed query logging, and OTel tracing plus
// Prometheus collection on top of the same connection.
var Module = fx.Module("db",
	fx.Provide(NewGormDB),
)

// NewGormDB opens the dialect selected by cfg, applies pool limits, and
// attaches the tracing/metrics plugins before handing the connection to the
// rest of the app.
func NewGormDB(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: dbsupport.NewGormLogger(log, dbsupport.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, err
	}

	if cfg.DBType == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Minute)

		if err := conn.Use(otelgorm.NewPlugin()); err != nil {
			return nil, err
		}
		if err := conn.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          cfg.DBName,
			RefreshInterval: 15,
			StartServer:     false,
		})); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return conn, nil
}
