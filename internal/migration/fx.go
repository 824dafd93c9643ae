package migration

import (
	auditdomain "github.com/brightmoja/memberpay/internal/audit/domain"
	"github.com/brightmoja/memberpay/internal/config"
	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	sessiondomain "github.com/brightmoja/memberpay/internal/session/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// The embedded SQL targets postgres; other dialects (local dev,
			// tests) get the gorm schema directly.
			err := conn.AutoMigrate(
				&memberdomain.Member{},
				&paymentdomain.PaymentRecord{},
				&sessiondomain.Setting{},
				&auditdomain.AuditLog{},
			)
			if err != nil {
				return err
			}
			return EnsurePaymentIndexes(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
