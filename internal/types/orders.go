package types

import "time"

// DateLayout is the wire format for all trading dates.
const DateLayout = "2006-01-02"

// Order actions. UPDATE_STOP only adjusts the stop-loss on an existing
// position and never touches cash or shares.
const (
	ActionBuy        = "BUY"
	ActionSell       = "SELL"
	ActionUpdateStop = "UPDATE_STOP"
)

// Order types.
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// Trade statuses recorded in the trade log.
const (
	StatusFilled   = "FILLED"
	StatusFailed   = "FAILED"
	StatusRejected = "REJECTED"
	StatusSkipped  = "SKIPPED"
)

// Order is an external decision input (human or model generated). Orders are
// immutable once received: the engine only reads them and produces a trade
// log entry per attempt.
//
// Shares is a float on the wire so that a non-integer quantity reaches the
// validator and is rejected with an explicit reason instead of failing JSON
// binding. LimitPrice and StopLoss are pointers because their presence is
// conditional on Action and OrderType.
type Order struct {
	OrderID       string   `json:"order_id"`
	Action        string   `json:"action"`     // BUY, SELL or UPDATE_STOP
	Ticker        string   `json:"ticker"`
	Shares        *float64 `json:"shares"`     // required for BUY and SELL, integral
	OrderType     string   `json:"order_type"` // MARKET or LIMIT
	LimitPrice    *float64 `json:"limit_price"`
	StopLoss      *float64 `json:"stop_loss"` // required for BUY and UPDATE_STOP
	ExecutionDate string   `json:"execution_date"` // YYYY-MM-DD
	Rationale     string   `json:"rationale"`
	Confidence    float64  `json:"confidence"` // 0-1
}

// Date parses the order's execution date.
func (o Order) Date() (time.Time, error) {
	return time.Parse(DateLayout, o.ExecutionDate)
}

// MarketQuote is a single day of OHLCV data for one ticker, supplied by the
// market data collaborator.
type MarketQuote struct {
	Ticker string  `json:"ticker"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}
