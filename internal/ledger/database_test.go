package ledger

import (
	"path/filepath"
	"testing"

	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&Position{},
		&CashBalance{},
		&TradeLogEntry{},
		&PortfolioHistoryEntry{},
		&PositionHistoryEntry{},
		&PendingOrder{},
		&MetricEntry{},
	))

	return NewDatabase(db)
}

func fptr(v float64) *float64 { return &v }

func TestSeedIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Seed(10_000))
	require.NoError(t, db.Seed(99_999))

	cash, err := db.CashBalance()
	require.NoError(t, err)
	assert.Equal(t, 10_000.0, cash.Amount)
	assert.Equal(t, 10_000.0, cash.StartingCash)
}

func TestCashBalanceBeforeSeed(t *testing.T) {
	db := openTestDB(t)

	_, err := db.CashBalance()
	assert.ErrorContains(t, err, "not seeded")
}

func TestSaveAndLoadBook(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Seed(10_000))

	book := NewBook(5432.1098)
	book.Positions["AAPL"] = &Position{
		Ticker:        "AAPL",
		Shares:        10,
		CostBasis:     490.123456,
		AverageCost:   49.0123456,
		StopLoss:      40,
		MarketPrice:   fptr(55.0190),
		MarketValue:   fptr(550.1949),
		UnrealizedPnL: fptr(59.881544),
	}
	require.NoError(t, db.SaveBook(book))

	loaded, err := db.LoadBook()
	require.NoError(t, err)

	// Cash and cost basis keep full precision.
	assert.Equal(t, 5432.1098, loaded.Cash)
	pos := loaded.Position("AAPL")
	require.NotNil(t, pos)
	assert.Equal(t, 490.123456, pos.CostBasis)
	// Valuation fields are rounded at persistence.
	require.NotNil(t, pos.MarketPrice)
	assert.Equal(t, 55.02, *pos.MarketPrice)
	require.NotNil(t, pos.MarketValue)
	assert.Equal(t, 550.19, *pos.MarketValue)
	require.NotNil(t, pos.UnrealizedPnL)
	assert.Equal(t, 59.88, *pos.UnrealizedPnL)
}

func TestSaveBookReplacesClosedPositions(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Seed(10_000))

	book := NewBook(1000)
	book.Positions["AAPL"] = &Position{Ticker: "AAPL", Shares: 10, CostBasis: 490, AverageCost: 49}
	require.NoError(t, db.SaveBook(book))

	// Close the position and save again. The old row must be gone even
	// though the ticker column carries a unique index.
	delete(book.Positions, "AAPL")
	book.Positions["MSFT"] = &Position{Ticker: "MSFT", Shares: 5, CostBasis: 100, AverageCost: 20}
	require.NoError(t, db.SaveBook(book))

	loaded, err := db.LoadBook()
	require.NoError(t, err)
	assert.Nil(t, loaded.Position("AAPL"))
	require.NotNil(t, loaded.Position("MSFT"))
	assert.Equal(t, int64(5), loaded.Position("MSFT").Shares)

	// And re-opening the same ticker later must not trip the index either.
	book.Positions["AAPL"] = &Position{Ticker: "AAPL", Shares: 1, CostBasis: 50, AverageCost: 50}
	require.NoError(t, db.SaveBook(book))
}

func TestAppendTradeLogRounds(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.AppendTradeLog(&TradeLogEntry{
		TradeID: "t-1",
		Date:    "2025-03-10",
		Ticker:  "AAPL",
		Action:  types.ActionSell,
		Shares:  10,
		Price:   55.005,
		PnL:     fptr(60.004999),
		Status:  types.StatusFilled,
	}))

	entries, err := db.TradeLog()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 55.01, entries[0].Price)
	require.NotNil(t, entries[0].PnL)
	assert.Equal(t, 60.0, *entries[0].PnL)
}

func TestPortfolioHistory(t *testing.T) {
	db := openTestDB(t)

	last, err := db.LastPortfolioHistory()
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, db.AppendPortfolioHistory(&PortfolioHistoryEntry{
		Date: "2025-03-10", Cash: 510, Equity: 1060.005, PositionsValue: 550.005,
		OverallReturnPct: 6.0005,
	}))
	require.NoError(t, db.AppendPortfolioHistory(&PortfolioHistoryEntry{
		Date: "2025-03-11", Cash: 510, Equity: 1070, PositionsValue: 560,
		DailyReturnPct: fptr(0.9433), OverallReturnPct: 7,
	}))

	last, err = db.LastPortfolioHistory()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "2025-03-11", last.Date)
	require.NotNil(t, last.DailyReturnPct)
	assert.Equal(t, 0.94, *last.DailyReturnPct)

	all, err := db.PortfolioHistory()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2025-03-10", all[0].Date)
	assert.Nil(t, all[0].DailyReturnPct)
	assert.Equal(t, 1060.01, all[0].Equity)
	assert.Equal(t, 6.0, all[0].OverallReturnPct)
}

func TestReplacePendingOrders(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.EnqueueOrder(&PendingOrder{OrderID: "o-1", Ticker: "AAPL", ExecutionDate: "2025-03-10"}))
	require.NoError(t, db.EnqueueOrder(&PendingOrder{OrderID: "o-2", Ticker: "MSFT", ExecutionDate: "2025-03-11"}))

	orders, err := db.PendingOrders()
	require.NoError(t, err)
	require.Len(t, orders, 2)

	// Carry only the future order forward.
	require.NoError(t, db.ReplacePendingOrders(orders[1:]))

	orders, err = db.PendingOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-2", orders[0].OrderID)

	// Carrying the same order across several runs must not trip the
	// unique order_id index.
	require.NoError(t, db.ReplacePendingOrders(orders))
}

func TestMetrics(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.AppendMetric(&MetricEntry{Kind: "performance", Date: "2025-03-10", Payload: `{"equity":1000}`}))
	require.NoError(t, db.AppendMetric(&MetricEntry{Kind: "other", Date: "2025-03-10", Payload: `{}`}))

	entries, err := db.Metrics("performance")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `{"equity":1000}`, entries[0].Payload)
}

func TestOrderRoundTrip(t *testing.T) {
	order := types.Order{
		OrderID:       "o-1",
		Action:        types.ActionBuy,
		Ticker:        "AAPL",
		Shares:        fptr(10),
		OrderType:     types.OrderTypeLimit,
		LimitPrice:    fptr(50),
		StopLoss:      fptr(40),
		ExecutionDate: "2025-03-10",
		Rationale:     "earnings play",
		Confidence:    0.8,
	}

	assert.Equal(t, order, FromOrder(order).ToOrder())
}
