package database

import (
	"fmt"

	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/ledgersim/ledgersim-api/internal/marketdata"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the portfolio's SQLite database and migrates every ledger
// schema. One database file holds exactly one portfolio.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	err = db.AutoMigrate(
		&ledger.Position{},
		&ledger.CashBalance{},
		&ledger.TradeLogEntry{},
		&ledger.PortfolioHistoryEntry{},
		&ledger.PositionHistoryEntry{},
		&ledger.PendingOrder{},
		&ledger.MetricEntry{},
		&marketdata.StoredQuote{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
