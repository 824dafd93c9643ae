package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations applies the embedded schema so a fresh database is usable
// out of the box for local and self-hosted deployments.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// EnsurePaymentIndexes adds the one-open-record partial index, which
// AutoMigrate cannot express through struct tags. SQLite supports partial
// indexes, so non-postgres deployments keep the storage-level guarantee;
// MySQL has no partial indexes and relies on the repository's
// insert-if-absent guard alone.
func EnsurePaymentIndexes(conn *gorm.DB) error {
	if conn.Dialector.Name() != "sqlite" {
		return nil
	}
	err := conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_records_open
		     ON payment_records (member_id, purpose, session)
		     WHERE status IN ('pending', 'verified')`).Error
	if err != nil {
		return fmt.Errorf("ensure payment indexes: %w", err)
	}
	return nil
}
