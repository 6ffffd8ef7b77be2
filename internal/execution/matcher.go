package execution

import (
	"fmt"

	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/ledgersim/ledgersim-api/internal/types"
)

// Outcome is the matcher's result for one validated order. Expected
// rejections (limit not met, insufficient cash or shares, unknown ticker)
// are outcomes, not errors.
type Outcome struct {
	Status string
	Price  float64  // fill price, zero when not filled
	Shares int64    // zero for stop-loss updates
	PnL    *float64 // realized, sells only
	Reason string   // populated on non-FILLED
}

func filled(price float64, shares int64) Outcome {
	return Outcome{Status: types.StatusFilled, Price: price, Shares: shares}
}

func failed(shares int64, reason string) Outcome {
	return Outcome{Status: types.StatusFailed, Shares: shares, Reason: reason}
}

// orderShares converts the order's share count to int64. A count outside
// (0, maxOrderShares] would corrupt the conversion and must have been stopped
// by validation.
func orderShares(order types.Order, action string) (int64, error) {
	if order.Shares == nil {
		return 0, fmt.Errorf("%s order without shares reached the matcher", action)
	}
	if *order.Shares <= 0 || *order.Shares > maxOrderShares {
		return 0, fmt.Errorf("unvalidated share count %v reached the matcher", *order.Shares)
	}
	return int64(*order.Shares), nil
}

// Apply resolves one validated order against the day's quote and mutates the
// book accordingly. It is deterministic given the same inputs. A rejected
// order never mutates cash or any position.
//
// The returned error is reserved for contract violations: an order shape
// that should have been stopped by validation.
func Apply(order types.Order, book *ledger.Book, quote types.MarketQuote) (Outcome, error) {
	switch order.Action {
	case types.ActionBuy:
		return applyBuy(order, book, quote)
	case types.ActionSell:
		return applySell(order, book, quote)
	case types.ActionUpdateStop:
		if order.StopLoss == nil {
			return Outcome{}, fmt.Errorf("stop-loss update without stop_loss reached the matcher")
		}
		return applyStopUpdate(order, book), nil
	default:
		return Outcome{}, fmt.Errorf("unvalidated action %q reached the matcher", order.Action)
	}
}

func applyBuy(order types.Order, book *ledger.Book, quote types.MarketQuote) (Outcome, error) {
	shares, err := orderShares(order, "buy")
	if err != nil {
		return Outcome{}, err
	}

	fillPrice := quote.Open
	if order.OrderType == types.OrderTypeLimit {
		if order.LimitPrice == nil {
			return Outcome{}, fmt.Errorf("limit buy without limit_price reached the matcher")
		}
		limit := *order.LimitPrice
		// A limit buy fails if the day never trades at or below the limit;
		// otherwise it cannot fill worse than the limit but may fill better.
		if quote.Low > limit {
			return failed(shares, fmt.Sprintf("limit price of %v not met (low: %v)", limit, quote.Low)), nil
		}
		if fillPrice > limit {
			fillPrice = limit
		}
	}

	cost := float64(shares) * fillPrice
	if cost > book.Cash {
		return failed(shares, "insufficient cash"), nil
	}

	if pos := book.Position(order.Ticker); pos != nil {
		pos.Shares += shares
		pos.CostBasis += cost
		pos.AverageCost = pos.CostBasis / float64(pos.Shares)
	} else {
		stopLoss := 0.0
		if order.StopLoss != nil {
			stopLoss = *order.StopLoss
		}
		book.Positions[order.Ticker] = &ledger.Position{
			Ticker:      order.Ticker,
			Shares:      shares,
			CostBasis:   cost,
			AverageCost: fillPrice,
			StopLoss:    stopLoss,
		}
	}
	book.Cash -= cost

	return filled(fillPrice, shares), nil
}

func applySell(order types.Order, book *ledger.Book, quote types.MarketQuote) (Outcome, error) {
	shares, err := orderShares(order, "sell")
	if err != nil {
		return Outcome{}, err
	}

	pos := book.Position(order.Ticker)
	if pos == nil {
		return failed(shares, fmt.Sprintf("no position in %s", order.Ticker)), nil
	}
	if shares > pos.Shares {
		return failed(shares, fmt.Sprintf("insufficient shares: requested %d, available %d", shares, pos.Shares)), nil
	}

	fillPrice := quote.Open
	if order.OrderType == types.OrderTypeLimit {
		if order.LimitPrice == nil {
			return Outcome{}, fmt.Errorf("limit sell without limit_price reached the matcher")
		}
		limit := *order.LimitPrice
		if quote.High < limit {
			return failed(shares, fmt.Sprintf("limit price of %v not met (high: %v)", limit, quote.High)), nil
		}
		if fillPrice < limit {
			fillPrice = limit
		}
	}

	proceeds := float64(shares) * fillPrice
	pnl := (fillPrice - pos.AverageCost) * float64(shares)

	remaining := pos.Shares - shares
	if remaining == 0 {
		delete(book.Positions, order.Ticker)
	} else {
		// Cost basis per remaining share stays equal to the pre-trade
		// average cost.
		pos.Shares = remaining
		pos.CostBasis = pos.AverageCost * float64(remaining)
	}
	book.Cash += proceeds

	out := filled(fillPrice, shares)
	out.PnL = &pnl
	return out, nil
}

func applyStopUpdate(order types.Order, book *ledger.Book) Outcome {
	pos := book.Position(order.Ticker)
	if pos == nil {
		return Outcome{
			Status: types.StatusFailed,
			Reason: fmt.Sprintf("%s not in portfolio", order.Ticker),
		}
	}
	pos.StopLoss = *order.StopLoss
	return Outcome{Status: types.StatusFilled}
}
