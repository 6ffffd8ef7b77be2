package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgersim/ledgersim-api/internal/calendar"
	"github.com/ledgersim/ledgersim-api/internal/database"
	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/ledgersim/ledgersim-api/internal/marketdata"
	"github.com/ledgersim/ledgersim-api/internal/processing"
	"github.com/ledgersim/ledgersim-api/internal/snapshot"
	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}

// init configures pretty console logging for the simulation.
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// main drives the engine across consecutive trading days against seeded
// quotes, then prints a summary. The exit status is zero only if every run
// committed.
func main() {
	var (
		dbPath = flag.String("db", "simulation.db", "ledger database path")
		start  = flag.String("start", "", "first day to process (YYYY-MM-DD, default today)")
		days   = flag.Int("days", 10, "number of calendar days to process")
		cash   = flag.Float64("cash", 10_000, "starting cash for a fresh ledger")
		seed   = flag.Int64("seed", 42, "random seed for quotes and orders")
		perDay = flag.Int("orders", 3, "orders generated per trading day")
	)
	flag.Parse()

	startDate := time.Now()
	if *start != "" {
		parsed, err := time.Parse(types.DateLayout, *start)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -start date")
		}
		startDate = parsed
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	ledgerDB := ledger.NewDatabase(db)
	if err := ledgerDB.Seed(*cash); err != nil {
		log.Fatal().Err(err).Msg("failed to seed ledger")
	}

	rng := rand.New(rand.NewSource(*seed))
	store := marketdata.NewStore(db)
	if err := seedQuotes(store, rng, startDate, *days); err != nil {
		log.Fatal().Err(err).Msg("failed to seed quotes")
	}

	service := processing.NewService(ledgerDB, snapshot.NewManager(db), store)

	totals := struct {
		runs, committed, rolledBack int
		filled, failedOrds, skipped int
	}{}

	ctx := context.Background()
	for i := 0; i < *days; i++ {
		day := startDate.AddDate(0, 0, i)
		if calendar.IsTradingDay(day) {
			enqueueOrders(ledgerDB, rng, day, *perDay)
		}

		result, err := service.ProcessDay(ctx, day)
		totals.runs++
		if err != nil {
			totals.rolledBack++
			log.Error().Err(err).Str("date", result.Date).Str("state", result.State).
				Msg("run did not commit")
			continue
		}
		totals.committed++
		totals.filled += result.Filled
		totals.failedOrds += result.Failed
		totals.skipped += result.Skipped
	}

	printSummary(ledgerDB, totals.runs, totals.committed, totals.rolledBack,
		totals.filled, totals.failedOrds, totals.skipped)

	if totals.rolledBack > 0 {
		os.Exit(1)
	}
}

// seedQuotes writes a deterministic random walk per symbol across the window.
func seedQuotes(store *marketdata.Store, rng *rand.Rand, start time.Time, days int) error {
	for _, symbol := range symbols {
		price := 50 + rng.Float64()*200
		for i := 0; i < days; i++ {
			day := start.AddDate(0, 0, i)
			if !calendar.IsTradingDay(day) {
				continue
			}

			drift := price * (rng.Float64()*0.04 - 0.02)
			open := price + drift
			close := open + open*(rng.Float64()*0.04-0.02)
			high := open
			if close > high {
				high = close
			}
			high += open * rng.Float64() * 0.01
			low := open
			if close < low {
				low = close
			}
			low -= open * rng.Float64() * 0.01

			err := store.Put(symbol, day, types.MarketQuote{
				Ticker: symbol,
				Open:   open,
				High:   high,
				Low:    low,
				Close:  close,
				Volume: int64(rng.Intn(5_000_000) + 500_000),
			})
			if err != nil {
				return err
			}
			price = close
		}
	}
	return nil
}

// enqueueOrders queues a handful of random orders dated for the given day.
func enqueueOrders(db *ledger.Database, rng *rand.Rand, day time.Time, count int) {
	for i := 0; i < count; i++ {
		shares := float64(rng.Intn(10) + 1)
		stopLoss := 10 + rng.Float64()*40

		order := ledger.PendingOrder{
			OrderID:       uuid.New().String(),
			Action:        types.ActionBuy,
			Ticker:        symbols[rng.Intn(len(symbols))],
			Shares:        &shares,
			OrderType:     types.OrderTypeMarket,
			StopLoss:      &stopLoss,
			ExecutionDate: day.Format(types.DateLayout),
			Rationale:     "simulation order",
			Confidence:    rng.Float64(),
		}
		if rng.Float64() < 0.3 {
			order.Action = types.ActionSell
			order.StopLoss = nil
		}

		if err := db.EnqueueOrder(&order); err != nil {
			log.Error().Err(err).Str("ticker", order.Ticker).Msg("failed to enqueue order")
		}
	}
}

func printSummary(db *ledger.Database, runs, committed, rolledBack, filled, failed, skipped int) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("Simulation Summary")
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Runs:        %d (%d committed, %d rolled back)\n", runs, committed, rolledBack)
	fmt.Printf("Orders:      %d filled, %d failed, %d deferred\n", filled, failed, skipped)

	if last, err := db.LastPortfolioHistory(); err == nil && last != nil {
		fmt.Printf("Final state: equity %.2f, cash %.2f, overall return %.2f%%\n",
			last.Equity, last.Cash, last.OverallReturnPct)
	}
	fmt.Println(strings.Repeat("=", 60))
}
