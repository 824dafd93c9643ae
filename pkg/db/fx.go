package db

import (
	"github.com/brightmoja/memberpay/internal/config"
	"github.com/brightmoja/memberpay/internal/observability/logger"
	"go.uber.org/fx"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("db",
	fx.Provide(
		provideConfig,
		provideGormLogger,
		Provide,
	),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Type:            cfg.DBType,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}

func provideGormLogger() gormlogger.Interface {
	return logger.NewQueryLogger(logger.DefaultQueryLoggerConfig())
}
