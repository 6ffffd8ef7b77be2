// Package execution validates decision inputs and applies them to the
// in-memory book: order shape and date checks, fill-price determination, and
// position/cash bookkeeping.
package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/ledgersim/ledgersim-api/internal/calendar"
	"github.com/ledgersim/ledgersim-api/internal/types"
)

// maxOrderShares bounds a single order's share count. A larger count would
// not survive the int64 conversion in the matcher.
const maxOrderShares = 1_000_000_000

// Verdict is the validator's per-order decision.
type Verdict int

const (
	// VerdictAccept passes the order on to the matcher.
	VerdictAccept Verdict = iota
	// VerdictDefer carries a future-dated order forward to the next run,
	// unchanged. The order is neither accepted nor rejected.
	VerdictDefer
	// VerdictRejectPast drops a stale order whose execution date is before
	// the run date. Never retried.
	VerdictRejectPast
	// VerdictRejectCalendar drops an order dated on a weekend or holiday.
	VerdictRejectCalendar
	// VerdictRejectMalformed drops an order with a bad or missing field.
	VerdictRejectMalformed
)

// Status maps the verdict to the trade log status recorded for it.
func (v Verdict) Status() string {
	switch v {
	case VerdictRejectPast, VerdictRejectCalendar:
		return types.StatusRejected
	case VerdictRejectMalformed:
		return types.StatusFailed
	case VerdictDefer:
		return types.StatusSkipped
	default:
		return ""
	}
}

// Validate performs the structural and temporal checks that need no market
// data. The returned reason is empty for Accept and Defer.
//
// Check order mirrors processing: stale date, closed-market date, then share
// integrality, then the defer decision, then per-action required fields. A
// future-dated order with integral shares is deferred before its remaining
// fields are inspected; it gets its full structural check on the run that
// resolves it.
func Validate(order types.Order, runDate time.Time) (Verdict, string) {
	orderDate, err := order.Date()
	if err != nil {
		return VerdictRejectMalformed, fmt.Sprintf("execution_date %q is not a valid date", order.ExecutionDate)
	}

	run := runDate.Format(types.DateLayout)
	day := orderDate.Format(types.DateLayout)

	if day < run {
		return VerdictRejectPast, fmt.Sprintf("order date (%s) is before run date (%s)", day, run)
	}
	if !calendar.IsTradingDay(orderDate) {
		return VerdictRejectCalendar, "market closed on order date"
	}

	if order.Shares != nil {
		if *order.Shares != math.Trunc(*order.Shares) {
			return VerdictRejectMalformed, fmt.Sprintf("shares (%v) is not an integer", *order.Shares)
		}
		if *order.Shares <= 0 {
			return VerdictRejectMalformed, fmt.Sprintf("shares (%v) is not a positive integer", *order.Shares)
		}
		if *order.Shares > maxOrderShares {
			return VerdictRejectMalformed, fmt.Sprintf("shares (%v) exceeds the maximum order size of %d", *order.Shares, maxOrderShares)
		}
	}

	if day > run {
		return VerdictDefer, ""
	}

	if order.Ticker == "" {
		return VerdictRejectMalformed, "missing ticker"
	}

	switch order.Action {
	case types.ActionBuy, types.ActionSell:
		if order.Shares == nil {
			return VerdictRejectMalformed, "missing shares"
		}
		switch order.OrderType {
		case types.OrderTypeLimit:
			if order.LimitPrice == nil {
				return VerdictRejectMalformed, "limit order without limit_price"
			}
		case types.OrderTypeMarket:
		default:
			return VerdictRejectMalformed, fmt.Sprintf("unknown order type: %q", order.OrderType)
		}
		if order.Action == types.ActionBuy && order.StopLoss == nil {
			return VerdictRejectMalformed, "buy order without stop_loss"
		}
	case types.ActionUpdateStop:
		if order.StopLoss == nil {
			return VerdictRejectMalformed, "stop-loss update without stop_loss"
		}
	default:
		return VerdictRejectMalformed, fmt.Sprintf("unknown action: %q", order.Action)
	}

	return VerdictAccept, ""
}
