package ledger

import "math"

// Book is the in-memory working copy of the portfolio for a single run: the
// open positions keyed by ticker plus the cash balance. It is exclusively
// owned by the run orchestrator for the run's duration and is never aliased
// between pipeline stages.
type Book struct {
	Positions map[string]*Position
	Cash      float64
}

// NewBook returns an empty book with the given cash balance.
func NewBook(cash float64) *Book {
	return &Book{
		Positions: make(map[string]*Position),
		Cash:      cash,
	}
}

// Position returns the open position for ticker, or nil if none is held.
func (b *Book) Position(ticker string) *Position {
	return b.Positions[ticker]
}

// PositionsValue sums the market value of all open positions. It returns
// false if any open position has not been valued yet.
func (b *Book) PositionsValue() (float64, bool) {
	total := 0.0
	for _, p := range b.Positions {
		if p.MarketValue == nil {
			return 0, false
		}
		total += *p.MarketValue
	}
	return total, true
}

// Round2 rounds a monetary figure to two decimal places. It is applied only
// at the point of persistence or logging, never mid-calculation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round2ptr rounds through an optional monetary figure.
func round2ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round2(*v)
	return &r
}
