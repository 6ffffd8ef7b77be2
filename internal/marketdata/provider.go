// Package marketdata supplies daily OHLCV quotes to the execution engine.
// Retrieval strategy (single source or a fallback chain across sources) is
// this package's concern; the engine only sees the Provider contract.
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/ledgersim/ledgersim-api/internal/types"
)

// ErrDataUnavailable means the market was closed on the requested date or the
// ticker has no data for it. Callers must not retry past this point.
var ErrDataUnavailable = errors.New("market data unavailable")

// Provider returns the daily quote for one ticker on one date.
type Provider interface {
	Quote(ctx context.Context, ticker string, date time.Time) (types.MarketQuote, error)
}
