// Package snapshot provides the all-or-nothing boundary around a processing
// run. A snapshot is a deep, owned copy of every persisted ledger artifact;
// rollback rewrites all of them together or fails as unrecoverable.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Manager state machine errors. Reaching one of these is a programming
// contract violation, not a recoverable condition.
var (
	ErrRunInProgress = errors.New("snapshot already captured: run in progress")
	ErrNoRun         = errors.New("no run in progress")
)

// Snapshot is an independent copy of the full ledger state taken at run
// start. It is owned by the run orchestrator for the duration of one run:
// discarded on commit, consumed by rollback on failure.
type Snapshot struct {
	Positions        []ledger.Position
	CashBalances     []ledger.CashBalance
	TradeLog         []ledger.TradeLogEntry
	PortfolioHistory []ledger.PortfolioHistoryEntry
	PositionHistory  []ledger.PositionHistoryEntry
	PendingOrders    []ledger.PendingOrder
	Metrics          []ledger.MetricEntry
}

type state int

const (
	stateIdle state = iota
	stateRunInProgress
)

// Manager captures and restores ledger snapshots. It holds the one piece of
// run-scoped global state in the engine and must never be shared across
// concurrent runs.
type Manager struct {
	db    *gorm.DB
	state state
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db, state: stateIdle}
}

// Capture reads every ledger table into an owned snapshot and transitions
// Idle -> RunInProgress. Later mutation of the live store is never visible
// through the returned snapshot.
func (m *Manager) Capture() (*Snapshot, error) {
	if m.state != stateIdle {
		return nil, ErrRunInProgress
	}

	snap := &Snapshot{}
	reads := []struct {
		name string
		dest interface{}
	}{
		{"positions", &snap.Positions},
		{"cash_balances", &snap.CashBalances},
		{"trade_log_entries", &snap.TradeLog},
		{"portfolio_history_entries", &snap.PortfolioHistory},
		{"position_history_entries", &snap.PositionHistory},
		{"pending_orders", &snap.PendingOrders},
		{"metric_entries", &snap.Metrics},
	}
	for _, r := range reads {
		if err := m.db.Order("id").Find(r.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to capture %s: %w", r.name, err)
		}
	}

	m.state = stateRunInProgress
	log.Debug().
		Int("positions", len(snap.Positions)).
		Int("trade_log", len(snap.TradeLog)).
		Int("pending_orders", len(snap.PendingOrders)).
		Msg("captured pre-run snapshot")

	return snap, nil
}

// Commit discards the snapshot and transitions back to Idle. The run's
// effects stand.
func (m *Manager) Commit() error {
	if m.state != stateRunInProgress {
		return ErrNoRun
	}
	m.state = stateIdle
	return nil
}

// Rollback overwrites every ledger artifact with the snapshot's contents in
// a single transaction and transitions back to Idle. If the transaction
// cannot complete, the error is fatal: there is no second-level fallback
// past this point.
func (m *Manager) Rollback(snap *Snapshot) error {
	if m.state != stateRunInProgress {
		return ErrNoRun
	}

	tx := m.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("rollback failed to open transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := m.restore(tx, snap); err != nil {
		tx.Rollback()
		return fmt.Errorf("rollback failed, ledger may be inconsistent: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("rollback failed to commit, ledger may be inconsistent: %w", err)
	}

	m.state = stateIdle
	log.Warn().Msg("ledger restored to pre-run snapshot")
	return nil
}

func (m *Manager) restore(tx *gorm.DB, snap *Snapshot) error {
	steps := []struct {
		model interface{}
		rows  func() (interface{}, int)
	}{
		{&ledger.Position{}, func() (interface{}, int) { return &snap.Positions, len(snap.Positions) }},
		{&ledger.CashBalance{}, func() (interface{}, int) { return &snap.CashBalances, len(snap.CashBalances) }},
		{&ledger.TradeLogEntry{}, func() (interface{}, int) { return &snap.TradeLog, len(snap.TradeLog) }},
		{&ledger.PortfolioHistoryEntry{}, func() (interface{}, int) { return &snap.PortfolioHistory, len(snap.PortfolioHistory) }},
		{&ledger.PositionHistoryEntry{}, func() (interface{}, int) { return &snap.PositionHistory, len(snap.PositionHistory) }},
		{&ledger.PendingOrder{}, func() (interface{}, int) { return &snap.PendingOrders, len(snap.PendingOrders) }},
		{&ledger.MetricEntry{}, func() (interface{}, int) { return &snap.Metrics, len(snap.Metrics) }},
	}

	for _, step := range steps {
		if err := tx.Unscoped().Where("1 = 1").Delete(step.model).Error; err != nil {
			return err
		}
		rows, n := step.rows()
		if n == 0 {
			continue
		}
		if err := tx.Create(rows).Error; err != nil {
			return err
		}
	}
	return nil
}
