// Package history derives and appends the daily equity and position
// snapshots once orders are applied and market values refreshed.
package history

import (
	"fmt"
	"time"

	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/rs/zerolog/log"
)

// Appender writes the append-only daily rows.
type Appender struct {
	db *ledger.Database
}

func NewAppender(db *ledger.Database) *Appender {
	return &Appender{db: db}
}

// AppendDaily computes the day's equity figures from the valued book and
// appends one portfolio history row plus one position history row per open
// position.
//
// Precondition: every open position carries a market value. A nil market
// value here is a programming contract failure and aborts the run.
func (a *Appender) AppendDaily(runDate time.Time, book *ledger.Book, startingCash float64) error {
	logger := log.With().
		Str("component", "history_appender").
		Str("date", runDate.Format(types.DateLayout)).
		Logger()

	positionsValue, valued := book.PositionsValue()
	if !valued {
		return fmt.Errorf("market value not computed for every open position before history append")
	}

	equity := positionsValue + book.Cash

	var dailyReturnPct *float64
	last, err := a.db.LastPortfolioHistory()
	if err != nil {
		return fmt.Errorf("failed to read prior history row: %w", err)
	}
	if last != nil {
		pct := (equity/last.Equity - 1) * 100
		dailyReturnPct = &pct
	}

	overallReturnPct := (equity/startingCash - 1) * 100

	entry := &ledger.PortfolioHistoryEntry{
		Date:             runDate.Format(types.DateLayout),
		Cash:             book.Cash,
		Equity:           equity,
		PositionsValue:   positionsValue,
		DailyReturnPct:   dailyReturnPct,
		OverallReturnPct: overallReturnPct,
	}
	if err := a.db.AppendPortfolioHistory(entry); err != nil {
		return fmt.Errorf("failed to append portfolio history: %w", err)
	}

	rows := make([]ledger.PositionHistoryEntry, 0, len(book.Positions))
	for _, p := range book.Positions {
		if p.MarketPrice == nil || p.UnrealizedPnL == nil {
			return fmt.Errorf("valuation incomplete for %s before history append", p.Ticker)
		}
		rows = append(rows, ledger.PositionHistoryEntry{
			Date:          runDate.Format(types.DateLayout),
			Ticker:        p.Ticker,
			Shares:        p.Shares,
			AverageCost:   p.AverageCost,
			StopLoss:      p.StopLoss,
			MarketPrice:   *p.MarketPrice,
			MarketValue:   *p.MarketValue,
			UnrealizedPnL: *p.UnrealizedPnL,
		})
	}
	if err := a.db.AppendPositionHistory(rows); err != nil {
		return fmt.Errorf("failed to append position history: %w", err)
	}

	logger.Info().
		Float64("equity", ledger.Round2(equity)).
		Float64("positions_value", ledger.Round2(positionsValue)).
		Int("positions", len(rows)).
		Msg("daily history appended")

	return nil
}
