package ledger

import (
	"gorm.io/gorm"
)

// Position is the current holding for one ticker. A ticker with zero shares
// must not exist as a row: closing a position deletes it.
//
// MarketPrice, MarketValue and UnrealizedPnL are nullable because they are
// only populated once the day's closing quotes have been applied; the history
// appender treats a nil MarketValue on an open position as a contract
// violation.
type Position struct {
	gorm.Model    `json:"-"`
	Ticker        string   `gorm:"uniqueIndex" json:"ticker"`
	Shares        int64    `json:"shares"`
	CostBasis     float64  `json:"cost_basis"`   // total dollars paid
	AverageCost   float64  `json:"average_cost"` // cost_basis / shares
	StopLoss      float64  `json:"stop_loss"`
	MarketPrice   *float64 `json:"market_price"`
	MarketValue   *float64 `json:"market_value"`
	UnrealizedPnL *float64 `json:"unrealized_pnl"`
}

// CashBalance is a single-row table holding the current cash and the
// portfolio's starting cash (the baseline for overall return).
type CashBalance struct {
	gorm.Model   `json:"-"`
	Amount       float64 `json:"amount"`
	StartingCash float64 `json:"starting_cash"`
}

// TradeLogEntry is one immutable row per processed order attempt.
type TradeLogEntry struct {
	gorm.Model `json:"-"`
	TradeID    string   `gorm:"uniqueIndex" json:"trade_id"`
	Date       string   `gorm:"index" json:"date"`
	Ticker     string   `json:"ticker"`
	Action     string   `json:"action"`
	Shares     int64    `json:"shares"`
	Price      float64  `json:"price"`
	PnL        *float64 `json:"pnl"` // realized, sells only
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
	Status     string   `json:"status"` // FILLED, FAILED, REJECTED
	Reason     string   `json:"reason"` // populated on non-FILLED only
}

// PortfolioHistoryEntry is one immutable row per processed trading day.
// DailyReturnPct is nil on the first ever row.
type PortfolioHistoryEntry struct {
	gorm.Model       `json:"-"`
	Date             string   `gorm:"uniqueIndex" json:"date"`
	Cash             float64  `json:"cash"`
	Equity           float64  `json:"equity"`
	PositionsValue   float64  `json:"positions_value"`
	DailyReturnPct   *float64 `json:"daily_return_pct"`
	OverallReturnPct float64  `json:"overall_return_pct"`
}

// PositionHistoryEntry is a point-in-time snapshot of one open position on
// one processed trading day.
type PositionHistoryEntry struct {
	gorm.Model    `json:"-"`
	Date          string  `gorm:"index:idx_position_history_day" json:"date"`
	Ticker        string  `gorm:"index:idx_position_history_day" json:"ticker"`
	Shares        int64   `json:"shares"`
	AverageCost   float64 `json:"average_cost"`
	StopLoss      float64 `json:"stop_loss"`
	MarketPrice   float64 `json:"market_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PendingOrder is an order waiting in the queue for a future run. Rows are
// consumed by the run that resolves them; future-dated orders are carried
// forward unchanged.
type PendingOrder struct {
	gorm.Model    `json:"-"`
	OrderID       string   `gorm:"uniqueIndex" json:"order_id"`
	Action        string   `json:"action"`
	Ticker        string   `json:"ticker"`
	Shares        *float64 `json:"shares"`
	OrderType     string   `json:"order_type"`
	LimitPrice    *float64 `json:"limit_price"`
	StopLoss      *float64 `json:"stop_loss"`
	ExecutionDate string   `json:"execution_date"`
	Rationale     string   `json:"rationale"`
	Confidence    float64  `json:"confidence"`
}

// MetricEntry is an auxiliary append-only metric log row. Payload is a JSON
// document whose shape depends on Kind.
type MetricEntry struct {
	gorm.Model `json:"-"`
	Kind       string `gorm:"index" json:"kind"` // e.g. "performance"
	Date       string `json:"date"`
	Payload    string `json:"payload"`
}
