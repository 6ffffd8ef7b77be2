// Package processing sequences one atomic trading-day run: snapshot,
// validation, matching, valuation, history append, commit — with rollback to
// the pre-run snapshot on any failure in between.
package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgersim/ledgersim-api/internal/calendar"
	"github.com/ledgersim/ledgersim-api/internal/execution"
	"github.com/ledgersim/ledgersim-api/internal/history"
	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/ledgersim/ledgersim-api/internal/marketdata"
	"github.com/ledgersim/ledgersim-api/internal/snapshot"
	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/rs/zerolog/log"
)

// Run states. Transitions are strictly sequential; Committed and RolledBack
// are terminal.
const (
	StateNotStarted      = "NOT_STARTED"
	StateSnapshotTaken   = "SNAPSHOT_TAKEN"
	StateOrdersApplied   = "ORDERS_APPLIED"
	StateValued          = "VALUED"
	StateHistoryAppended = "HISTORY_APPENDED"
	StateCommitted       = "COMMITTED"
	StateRolledBack      = "ROLLED_BACK"
)

// RunResult summarizes one processing run.
type RunResult struct {
	RunID        string `json:"run_id"`
	Date         string `json:"date"`
	State        string `json:"state"`
	MarketClosed bool   `json:"market_closed"`
	Filled       int    `json:"filled"`
	Failed       int    `json:"failed"`
	Skipped      int    `json:"skipped"`
}

// Service is the run orchestrator. It exclusively owns the book and the
// snapshot for the duration of one run; it is not safe for concurrent runs
// against the same ledger.
type Service struct {
	db        *ledger.Database
	snapshots *snapshot.Manager
	quotes    marketdata.Provider
	appender  *history.Appender
}

func NewService(db *ledger.Database, snapshots *snapshot.Manager, quotes marketdata.Provider) *Service {
	return &Service{
		db:        db,
		snapshots: snapshots,
		quotes:    quotes,
		appender:  history.NewAppender(db),
	}
}

// ProcessDay runs one trading day end to end. On success the returned result
// is Committed and the ledger reflects the full day. On failure the ledger is
// restored to its pre-run state, the result is RolledBack and the triggering
// cause is returned.
//
// A date when the market is closed performs no mutation at all.
func (s *Service) ProcessDay(ctx context.Context, date time.Time) (*RunResult, error) {
	result := &RunResult{
		RunID: uuid.New().String(),
		Date:  date.Format(types.DateLayout),
		State: StateNotStarted,
	}

	logger := log.With().
		Str("run_id", result.RunID).
		Str("date", result.Date).
		Logger()

	if !calendar.IsTradingDay(date) {
		logger.Info().Msg("market closed, nothing to process")
		result.MarketClosed = true
		result.State = StateCommitted
		return result, nil
	}

	snap, err := s.snapshots.Capture()
	if err != nil {
		return result, fmt.Errorf("failed to capture pre-run snapshot: %w", err)
	}
	result.State = StateSnapshotTaken
	logger.Info().Msg("starting run")

	defer func() {
		if r := recover(); r != nil {
			s.rollback(snap, result)
			panic(r)
		}
	}()

	if err := s.run(ctx, date, result); err != nil {
		logger.Error().Err(err).Str("state", result.State).Msg("run failed, rolling back")
		if rbErr := s.rollback(snap, result); rbErr != nil {
			return result, fmt.Errorf("rollback failed after %q: %w", err.Error(), rbErr)
		}
		return result, fmt.Errorf("run rolled back: %w", err)
	}

	if err := s.snapshots.Commit(); err != nil {
		return result, err
	}
	result.State = StateCommitted
	logger.Info().
		Int("filled", result.Filled).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("run committed")

	return result, nil
}

func (s *Service) rollback(snap *snapshot.Snapshot, result *RunResult) error {
	if err := s.snapshots.Rollback(snap); err != nil {
		log.Error().Err(err).Str("run_id", result.RunID).
			Msg("rollback did not complete, ledger may be inconsistent")
		return err
	}
	result.State = StateRolledBack
	return nil
}

func (s *Service) run(ctx context.Context, date time.Time, result *RunResult) error {
	cash, err := s.db.CashBalance()
	if err != nil {
		return err
	}
	book, err := s.db.LoadBook()
	if err != nil {
		return err
	}

	if err := s.applyOrders(ctx, date, book, result); err != nil {
		return err
	}
	result.State = StateOrdersApplied

	if err := s.revalue(ctx, date, book); err != nil {
		return err
	}
	if err := s.db.SaveBook(book); err != nil {
		return fmt.Errorf("failed to persist portfolio: %w", err)
	}
	result.State = StateValued

	if err := s.appender.AppendDaily(date, book, cash.StartingCash); err != nil {
		return err
	}
	result.State = StateHistoryAppended

	return s.appendPerformanceMetric(date, book, cash.StartingCash, result)
}

func (s *Service) applyOrders(ctx context.Context, date time.Time, book *ledger.Book, result *RunResult) error {
	pending, err := s.db.PendingOrders()
	if err != nil {
		return err
	}

	var carry []ledger.PendingOrder
	for _, row := range pending {
		order := row.ToOrder()
		logger := log.With().
			Str("run_id", result.RunID).
			Str("order_id", order.OrderID).
			Str("ticker", order.Ticker).
			Str("action", order.Action).
			Logger()

		verdict, reason := execution.Validate(order, date)
		switch verdict {
		case execution.VerdictDefer:
			carry = append(carry, row)
			result.Skipped++
			logger.Debug().Str("order_date", order.ExecutionDate).Msg("order deferred to a later run")
			continue

		case execution.VerdictAccept:

		default:
			if err := s.logAttempt(order, execution.Outcome{
				Status: verdict.Status(),
				Reason: reason,
			}); err != nil {
				return err
			}
			result.Failed++
			logger.Warn().Str("reason", reason).Msg("order dropped by validation")
			continue
		}

		quote, err := s.quotes.Quote(ctx, order.Ticker, date)
		if err != nil {
			return fmt.Errorf("quote for %s on %s: %w", order.Ticker, result.Date, err)
		}

		outcome, err := execution.Apply(order, book, quote)
		if err != nil {
			return err
		}
		if err := s.logAttempt(order, outcome); err != nil {
			return err
		}

		if outcome.Status == types.StatusFilled {
			result.Filled++
			logger.Info().
				Float64("price", ledger.Round2(outcome.Price)).
				Int64("shares", outcome.Shares).
				Msg("order filled")
		} else {
			result.Failed++
			logger.Warn().Str("reason", outcome.Reason).Msg("order not filled")
		}
	}

	return s.db.ReplacePendingOrders(carry)
}

func (s *Service) logAttempt(order types.Order, outcome execution.Outcome) error {
	entry := &ledger.TradeLogEntry{
		TradeID:    uuid.New().String(),
		Date:       order.ExecutionDate,
		Ticker:     order.Ticker,
		Action:     order.Action,
		Shares:     outcome.Shares,
		Price:      outcome.Price,
		PnL:        outcome.PnL,
		Rationale:  order.Rationale,
		Confidence: order.Confidence,
		Status:     outcome.Status,
		Reason:     outcome.Reason,
	}
	if err := s.db.AppendTradeLog(entry); err != nil {
		return fmt.Errorf("failed to append trade log: %w", err)
	}
	return nil
}

// revalue refreshes every open position against the day's closing quote.
func (s *Service) revalue(ctx context.Context, date time.Time, book *ledger.Book) error {
	for _, pos := range book.Positions {
		quote, err := s.quotes.Quote(ctx, pos.Ticker, date)
		if err != nil {
			return fmt.Errorf("closing quote for %s: %w", pos.Ticker, err)
		}

		price := quote.Close
		value := price * float64(pos.Shares)
		pnl := value - pos.CostBasis

		pos.MarketPrice = &price
		pos.MarketValue = &value
		pos.UnrealizedPnL = &pnl
	}
	return nil
}

func (s *Service) appendPerformanceMetric(date time.Time, book *ledger.Book, startingCash float64, result *RunResult) error {
	positionsValue, _ := book.PositionsValue()
	equity := positionsValue + book.Cash

	payload, err := json.Marshal(map[string]interface{}{
		"date":               result.Date,
		"equity":             ledger.Round2(equity),
		"cash":               ledger.Round2(book.Cash),
		"overall_return_pct": ledger.Round2((equity/startingCash - 1) * 100),
		"filled":             result.Filled,
		"failed":             result.Failed,
		"skipped":            result.Skipped,
	})
	if err != nil {
		return err
	}

	return s.db.AppendMetric(&ledger.MetricEntry{
		Kind:    "performance",
		Date:    date.Format(types.DateLayout),
		Payload: string(payload),
	})
}
