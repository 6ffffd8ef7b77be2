package ledger

import (
	"errors"
	"fmt"

	"github.com/ledgersim/ledgersim-api/internal/types"
	"gorm.io/gorm"
)

// Database is the sole access path to the persisted ledger: current positions
// and cash, the three append-only history tables, the pending-order queue and
// the metric log.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GormDB exposes the underlying connection for components that need their own
// transaction boundary (the snapshot manager).
func (d *Database) GormDB() *gorm.DB {
	return d.db
}

// Seed creates the single cash row if the ledger is brand new. Calling it on
// an existing ledger is a no-op.
func (d *Database) Seed(startingCash float64) error {
	var count int64
	if err := d.db.Model(&CashBalance{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return d.db.Create(&CashBalance{
		Amount:       startingCash,
		StartingCash: startingCash,
	}).Error
}

// CashBalance returns the single cash row.
func (d *Database) CashBalance() (*CashBalance, error) {
	var cash CashBalance
	if err := d.db.First(&cash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ledger not seeded: cash balance row missing")
		}
		return nil, err
	}
	return &cash, nil
}

// LoadBook reads the current positions and cash into an in-memory book.
func (d *Database) LoadBook() (*Book, error) {
	cash, err := d.CashBalance()
	if err != nil {
		return nil, err
	}

	var positions []Position
	if err := d.db.Order("ticker").Find(&positions).Error; err != nil {
		return nil, err
	}

	book := NewBook(cash.Amount)
	for i := range positions {
		p := positions[i]
		book.Positions[p.Ticker] = &p
	}
	return book, nil
}

// SaveBook replaces the positions table and the cash amount with the book's
// contents in a single transaction. The valuation fields (MarketPrice,
// MarketValue, UnrealizedPnL) are rounded on the way out; cash and cost basis
// are stored at full precision so that weighted-average updates never
// compound rounding error.
func (d *Database) SaveBook(book *Book) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Unscoped().Where("1 = 1").Delete(&Position{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	for _, p := range book.Positions {
		row := Position{
			Ticker:        p.Ticker,
			Shares:        p.Shares,
			CostBasis:     p.CostBasis,
			AverageCost:   p.AverageCost,
			StopLoss:      p.StopLoss,
			MarketPrice:   round2ptr(p.MarketPrice),
			MarketValue:   round2ptr(p.MarketValue),
			UnrealizedPnL: round2ptr(p.UnrealizedPnL),
		}
		if err := tx.Create(&row).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Model(&CashBalance{}).Where("1 = 1").
		Update("amount", book.Cash).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// AppendTradeLog records one order attempt. Monetary fields are rounded here,
// at the point of logging.
func (d *Database) AppendTradeLog(entry *TradeLogEntry) error {
	entry.Price = Round2(entry.Price)
	entry.PnL = round2ptr(entry.PnL)
	return d.db.Create(entry).Error
}

// TradeLog returns all trade log rows in insertion order.
func (d *Database) TradeLog() ([]TradeLogEntry, error) {
	var entries []TradeLogEntry
	if err := d.db.Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendPortfolioHistory records the daily equity row.
func (d *Database) AppendPortfolioHistory(entry *PortfolioHistoryEntry) error {
	entry.Cash = Round2(entry.Cash)
	entry.Equity = Round2(entry.Equity)
	entry.PositionsValue = Round2(entry.PositionsValue)
	entry.DailyReturnPct = round2ptr(entry.DailyReturnPct)
	entry.OverallReturnPct = Round2(entry.OverallReturnPct)
	return d.db.Create(entry).Error
}

// LastPortfolioHistory returns the most recent daily row, or nil if the
// portfolio has never been processed.
func (d *Database) LastPortfolioHistory() (*PortfolioHistoryEntry, error) {
	var entry PortfolioHistoryEntry
	if err := d.db.Order("id desc").First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// PortfolioHistory returns all daily rows in chronological order.
func (d *Database) PortfolioHistory() ([]PortfolioHistoryEntry, error) {
	var entries []PortfolioHistoryEntry
	if err := d.db.Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendPositionHistory records the per-ticker daily snapshots.
func (d *Database) AppendPositionHistory(entries []PositionHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].AverageCost = Round2(entries[i].AverageCost)
		entries[i].MarketPrice = Round2(entries[i].MarketPrice)
		entries[i].MarketValue = Round2(entries[i].MarketValue)
		entries[i].UnrealizedPnL = Round2(entries[i].UnrealizedPnL)
	}
	return d.db.Create(&entries).Error
}

// EnqueueOrder appends one order to the pending queue.
func (d *Database) EnqueueOrder(order *PendingOrder) error {
	return d.db.Create(order).Error
}

// PendingOrders returns the queue in arrival order.
func (d *Database) PendingOrders() ([]PendingOrder, error) {
	var orders []PendingOrder
	if err := d.db.Order("id").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ReplacePendingOrders swaps the whole queue for the given carry-forward set
// in one transaction.
func (d *Database) ReplacePendingOrders(orders []PendingOrder) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Unscoped().Where("1 = 1").Delete(&PendingOrder{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	for i := range orders {
		row := orders[i]
		row.Model = gorm.Model{}
		if err := tx.Create(&row).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// AppendMetric records one auxiliary metric row.
func (d *Database) AppendMetric(entry *MetricEntry) error {
	return d.db.Create(entry).Error
}

// Metrics returns all metric rows of the given kind.
func (d *Database) Metrics(kind string) ([]MetricEntry, error) {
	var entries []MetricEntry
	if err := d.db.Where("kind = ?", kind).Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ToOrder converts a queued row back into the immutable order input.
func (p PendingOrder) ToOrder() types.Order {
	return types.Order{
		OrderID:       p.OrderID,
		Action:        p.Action,
		Ticker:        p.Ticker,
		Shares:        p.Shares,
		OrderType:     p.OrderType,
		LimitPrice:    p.LimitPrice,
		StopLoss:      p.StopLoss,
		ExecutionDate: p.ExecutionDate,
		Rationale:     p.Rationale,
		Confidence:    p.Confidence,
	}
}

// FromOrder wraps an order input as a queue row.
func FromOrder(o types.Order) PendingOrder {
	return PendingOrder{
		OrderID:       o.OrderID,
		Action:        o.Action,
		Ticker:        o.Ticker,
		Shares:        o.Shares,
		OrderType:     o.OrderType,
		LimitPrice:    o.LimitPrice,
		StopLoss:      o.StopLoss,
		ExecutionDate: o.ExecutionDate,
		Rationale:     o.Rationale,
		Confidence:    o.Confidence,
	}
}
