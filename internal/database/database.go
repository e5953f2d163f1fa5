package database

import (
	"fmt"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reconloop/recon-api/internal/database/migrations"
	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/party"
	"github.com/reconloop/recon-api/internal/payment"
	"github.com/reconloop/recon-api/internal/statement"
)

// NewDatabase initializes and returns a new GORM DB connection. The
// database path defaults to recon.db and can be overridden through
// DATABASE_PATH.
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "recon.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// NewTestDatabase opens an in-memory database with migrations applied,
// for tests.
func NewTestDatabase() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema and manual migrations.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ledger.Account{},
		&ledger.Move{},
		&ledger.MoveLine{},
		&ledger.Reconciliation{},
		&ledger.ExchangeRate{},
		&party.Party{},
		&payment.Journal{},
		&payment.Group{},
		&payment.Payment{},
		&statement.Statement{},
		&statement.StatementLine{},
		&statement.MoveLine{},
	)
	if err != nil {
		return err
	}

	if err := migrations.AddMoveLineIndexes(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
